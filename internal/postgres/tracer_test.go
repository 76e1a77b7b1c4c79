package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/vitaltriage/internal/triage/pgstore.(*Store).Put", "(*Store).Put"},
		{"already short", "(*Store).Get", "Get"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"single segment", "foo.Bar", "Bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOperation(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"SELECT id FROM t":             "SELECT",
		"  insert into t values ($1)": "INSERT",
		"":                             "UNKNOWN",
	}
	for in, want := range tests {
		if got := operation(in); got != want {
			t.Errorf("operation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReqDBStats(t *testing.T) {
	t.Parallel()

	ctx := NewReqDBStatsContext(context.Background())
	s, ok := ReqDBStatsFromContext(ctx)
	if !ok || s == nil {
		t.Fatal("expected stats on context")
	}
	s.AddQuery(10*time.Millisecond, nil)
	s.AddQuery(20*time.Millisecond, errors.New("timeout"))

	again, _ := ReqDBStatsFromContext(ctx)
	if again.QueryCount != 2 || again.ErrorCount != 1 || again.TotalDuration != 30*time.Millisecond {
		t.Errorf("stats = %d/%d/%v, want 2/1/30ms", again.QueryCount, again.ErrorCount, again.TotalDuration)
	}

	if _, ok := ReqDBStatsFromContext(context.Background()); ok {
		t.Error("expected ok=false for plain context")
	}
}

func TestWithHTTPMethod(t *testing.T) {
	t.Parallel()

	if got := httpMethodFromContext(WithHTTPMethod(context.Background(), "POST")); got != "POST" {
		t.Errorf("method = %q, want POST", got)
	}
	if got := httpMethodFromContext(WithHTTPMethod(context.Background(), "")); got != "" {
		t.Errorf("method = %q, want empty", got)
	}
}

// recordingTracer stands in for otelpgx.
type recordingTracer struct {
	starts, ends int
}

func (r *recordingTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	r.starts++
	return ctx
}

func (r *recordingTracer) TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData) {
	r.ends++
}

// Not parallel: installs the process-wide observer.
func TestQueryTracer_ObservesAndCounts(t *testing.T) {
	var got []QueryInfo
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, q QueryInfo) { got = append(got, q) }))
	t.Cleanup(func() { SetQueryObserver(nil) })

	inner := &recordingTracer{}
	tr := newQueryTracer(inner)

	ctx := WithHTTPMethod(NewReqDBStatsContext(context.Background()), "POST")

	qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{
		SQL:  "INSERT INTO triage_evaluations VALUES ($1, $2)",
		Args: []any{"id", "fp"},
	})
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("INSERT 0 1")})

	qctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{Err: errors.New("conn reset")})

	if inner.starts != 2 || inner.ends != 2 {
		t.Errorf("inner tracer calls = %d/%d, want 2/2", inner.starts, inner.ends)
	}
	if len(got) != 2 {
		t.Fatalf("observed %d queries, want 2", len(got))
	}
	if got[0].Operation != "INSERT" || got[0].Outcome != "ok" || got[0].Method != "POST" || got[0].Route != "unknown" {
		t.Errorf("first query = %+v", got[0])
	}
	if got[1].Operation != "SELECT" || got[1].Outcome != "error" {
		t.Errorf("second query = %+v", got[1])
	}

	s, _ := ReqDBStatsFromContext(ctx)
	if s.QueryCount != 2 || s.ErrorCount != 1 {
		t.Errorf("stats = %d queries / %d errors, want 2/1", s.QueryCount, s.ErrorCount)
	}
}

func TestQueryTracer_EndWithoutStart(t *testing.T) {
	t.Parallel()

	// must not panic when the start state is absent
	newQueryTracer(nil).TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
}
