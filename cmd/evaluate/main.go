// Evaluate scores a labeled hospital admissions CSV with every model in a
// manifest and reports accuracy, precision, recall and the confusion matrix
// per model at the configured decision thresholds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/vitaltriage/internal/features"
	"github.com/linnemanlabs/vitaltriage/internal/model"
	"github.com/linnemanlabs/vitaltriage/internal/triage"
)

const appName = "vitaltriage"
const component = "evaluate"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component

	fs := flag.NewFlagSet(component, flag.ContinueOnError)
	var (
		logCfg   log.Config
		inPath   string
		manifest string
		th       triage.Thresholds
	)
	logCfg.RegisterFlags(fs)
	fs.StringVar(&inPath, "in", "-", "labeled hospital admissions CSV (- for stdin)")
	fs.StringVar(&manifest, "model-manifest", "models/models.yaml", "YAML manifest listing the scoring models")
	fs.Float64Var(&th.Emergency, "emergency-threshold", triage.DefaultEmergencyThreshold, "probability at or above which a model votes emergency")
	fs.Float64Var(&th.NoEmergency, "no-emergency-threshold", triage.DefaultNoEmergencyThreshold, "probability at or above which a model votes non-emergency admission")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.FillFromEnv(fs, "VITALTRIAGE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := errors.Join(logCfg.Validate(), th.Validate()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", component)

	schema := features.DefaultSchema()
	models, err := model.Load(manifest, schema)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	engine, err := triage.NewEngine(schema, models, th, L, triage.EngineHooks{})
	if err != nil {
		return fmt.Errorf("triage engine: %w", err)
	}

	in := stdin
	if inPath != "-" {
		f, err := os.Open(inPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	a := triage.NewAssessment(engine)
	err = features.ReadDataset(ctx, in, schema, func(ex features.Example) error {
		if err := a.Add(ex); err != nil {
			return &features.RowError{Row: ex.Row, Err: err}
		}
		return nil
	})
	if err != nil {
		var re *features.RowError
		if errors.As(err, &re) {
			L.Error(ctx, err, "dataset row rejected", "row", re.Row)
		}
		return err
	}

	for _, c := range a.Scorecards() {
		L.Info(ctx, "model evaluated",
			"model", c.Model,
			"examples", c.Total(),
			"accuracy", c.Accuracy(),
			"precision", c.Precision(),
			"recall", c.Recall(),
			"f1", c.F1(),
		)
	}

	return writeReport(stdout, engine.Thresholds(), a.Scorecards())
}

// writeReport prints one block per model: headline metrics, the binary
// confusion matrix and the per-category breakdown.
func writeReport(w io.Writer, th triage.Thresholds, cards []*triage.Scorecard) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "thresholds\temergency >= %.2f\tno_emergency >= %.2f\n", th.Emergency, th.NoEmergency)
	for _, c := range cards {
		m := c.Confusion()
		fmt.Fprintf(tw, "\nmodel\t%s\n", c.Model)
		fmt.Fprintf(tw, "examples\t%d\n", c.Total())
		fmt.Fprintf(tw, "accuracy\t%.4f\n", c.Accuracy())
		fmt.Fprintf(tw, "precision\t%.4f\n", c.Precision())
		fmt.Fprintf(tw, "recall\t%.4f\n", c.Recall())
		fmt.Fprintf(tw, "f1\t%.4f\n", c.F1())
		fmt.Fprintf(tw, "confusion\tpredicted 0\tpredicted 1\n")
		fmt.Fprintf(tw, "  label 0\t%d\t%d\n", m[0][0], m[0][1])
		fmt.Fprintf(tw, "  label 1\t%d\t%d\n", m[1][0], m[1][1])
		fmt.Fprintf(tw, "category\tlabel 0\tlabel 1\n")
		for _, cat := range []triage.Category{triage.CategoryEmergency, triage.CategoryNoEmergency, triage.CategoryNoAdmission} {
			n := c.ByCategory[cat]
			fmt.Fprintf(tw, "  %s\t%d\t%d\n", cat, n[0], n[1])
		}
	}
	return tw.Flush()
}
