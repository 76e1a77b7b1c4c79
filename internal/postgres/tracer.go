package postgres

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

// QueryObserver receives one call per finished query.
type QueryObserver interface {
	ObserveQuery(ctx context.Context, q QueryInfo)
}

// QueryObserverFunc adapts a plain function to QueryObserver.
type QueryObserverFunc func(ctx context.Context, q QueryInfo)

// ObserveQuery implements QueryObserver.
func (f QueryObserverFunc) ObserveQuery(ctx context.Context, q QueryInfo) { f(ctx, q) }

// QueryInfo describes a finished query for metrics labelling.
type QueryInfo struct {
	Method    string // HTTP method of the request issuing the query, or UNKNOWN
	Route     string // chi route pattern, or unknown
	Operation string // first SQL keyword, upper-cased
	Outcome   string // ok or error
	Duration  time.Duration
}

type observerBox struct{ QueryObserver }

var observer atomic.Pointer[observerBox]

// SetQueryObserver installs the process-wide observer. nil removes it.
func SetQueryObserver(o QueryObserver) {
	if o == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&observerBox{o})
}

func currentObserver() QueryObserver {
	if b := observer.Load(); b != nil {
		return b.QueryObserver
	}
	return nil
}

// ReqDBStats accumulates the queries issued while serving one request.
type ReqDBStats struct {
	mu            sync.Mutex
	QueryCount    int
	TotalDuration time.Duration
	ErrorCount    int
}

// AddQuery records a single query execution.
func (s *ReqDBStats) AddQuery(dur time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCount++
	s.TotalDuration += dur
	if err != nil {
		s.ErrorCount++
	}
}

type (
	statsKey  struct{}
	methodKey struct{}
	queryKey  struct{}
)

// NewReqDBStatsContext returns ctx carrying an empty ReqDBStats.
func NewReqDBStatsContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, statsKey{}, &ReqDBStats{})
}

// ReqDBStatsFromContext returns the ReqDBStats attached to ctx, if any.
func ReqDBStatsFromContext(ctx context.Context) (*ReqDBStats, bool) {
	s, ok := ctx.Value(statsKey{}).(*ReqDBStats)
	return s, ok
}

// WithHTTPMethod stores the HTTP method for query metrics labelling.
func WithHTTPMethod(ctx context.Context, method string) context.Context {
	if method == "" {
		return ctx
	}
	return context.WithValue(ctx, methodKey{}, method)
}

func httpMethodFromContext(ctx context.Context) string {
	m, _ := ctx.Value(methodKey{}).(string)
	return m
}

// queryState travels from TraceQueryStart to TraceQueryEnd.
type queryState struct {
	sql    string
	nargs  int
	start  time.Time
	caller string
}

// queryTracer chains an inner pgx.QueryTracer (otelpgx) and adds a log line,
// request stats and an observer call per query. Bind arguments are never
// logged since they may carry patient-derived values; only their count is.
type queryTracer struct {
	inner pgx.QueryTracer
}

func newQueryTracer(inner pgx.QueryTracer) pgx.QueryTracer {
	return queryTracer{inner: inner}
}

func (t queryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	st := &queryState{
		sql:    data.SQL,
		nargs:  len(data.Args),
		start:  time.Now(),
		caller: findCaller(),
	}
	if t.inner != nil {
		ctx = t.inner.TraceQueryStart(ctx, conn, data)
	}
	if span := trace.SpanFromContext(ctx); st.caller != "" && span.IsRecording() {
		span.SetAttributes(attribute.String("db.caller", st.caller))
	}
	return context.WithValue(ctx, queryKey{}, st)
}

func (t queryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}

	st, ok := ctx.Value(queryKey{}).(*queryState)
	if !ok {
		return
	}
	dur := time.Since(st.start)
	op := operation(st.sql)

	if s, ok := ReqDBStatsFromContext(ctx); ok {
		s.AddQuery(dur, data.Err)
	}

	if o := currentObserver(); o != nil {
		q := QueryInfo{
			Method:    orDefault(httpMethodFromContext(ctx), "UNKNOWN"),
			Route:     orDefault(routePattern(ctx), "unknown"),
			Operation: op,
			Outcome:   "ok",
			Duration:  dur,
		}
		if data.Err != nil {
			q.Outcome = "error"
		}
		o.ObserveQuery(ctx, q)
	}

	fields := []any{
		"db.operation.name", op,
		"db.statement", st.sql,
		"db.args_count", st.nargs,
		"db.duration", dur.Seconds(),
	}
	if tag := data.CommandTag.String(); tag != "" {
		fields = append(fields, "pg.command_tag", tag, "db.rows", data.CommandTag.RowsAffected())
	}
	if st.caller != "" {
		fields = append(fields, "db.caller", st.caller)
	}

	L := log.FromContext(ctx)
	if data.Err != nil {
		var pgErr *pgconn.PgError
		if errors.As(data.Err, &pgErr) {
			fields = append(fields, "db.error_code", pgErr.Code, "db.error_constraint", pgErr.ConstraintName)
		}
		L.Error(ctx, data.Err, "db query failed", fields...)
		return
	}
	L.Info(ctx, "db query", fields...)
}

func routePattern(ctx context.Context) string {
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// operation returns the leading SQL keyword, e.g. SELECT or INSERT.
func operation(sql string) string {
	f := strings.Fields(sql)
	if len(f) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(f[0])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// findCaller returns the first application frame above the database driver,
// e.g. "(*Store).Get".
func findCaller() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := frames.Next()
		fn := fr.Function
		skip := strings.HasPrefix(fn, "runtime.") ||
			strings.Contains(fn, "github.com/jackc/pgx/v5") ||
			strings.Contains(fn, "github.com/exaring/otelpgx") ||
			strings.Contains(fn, "github.com/linnemanlabs/vitaltriage/internal/postgres.")
		if fn != "" && !skip {
			return shortenFuncName(fn)
		}
		if !more {
			return ""
		}
	}
}

func shortenFuncName(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	if dot := strings.Index(fn, "."); dot >= 0 && dot+1 < len(fn) {
		fn = fn[dot+1:]
	}
	return fn
}
