// Featurize turns the hospital admissions CSV into the numeric training matrix
// the scoring models are fitted on, using the same feature schema the server
// encodes requests with.
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

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/vitaltriage/internal/features"
)

const appName = "vitaltriage"
const component = "featurize"

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
		logCfg  log.Config
		inPath  string
		outPath string
	)
	logCfg.RegisterFlags(fs)
	fs.StringVar(&inPath, "in", "-", "hospital admissions CSV (- for stdin)")
	fs.StringVar(&outPath, "out", "-", "feature matrix CSV (- for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.FillFromEnv(fs, "VITALTRIAGE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := logCfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", component)

	in := stdin
	if inPath != "-" {
		f, err := os.Open(inPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	out := stdout
	var outFile *os.File
	if outPath != "-" {
		outFile, err = os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		out = outFile
	}

	schema := features.DefaultSchema()
	stats, err := features.WriteDataset(ctx, in, out, schema)
	if outFile != nil {
		err = errors.Join(err, outFile.Close())
	}
	if err != nil {
		var re *features.RowError
		if errors.As(err, &re) {
			L.Error(ctx, err, "dataset row rejected", "row", re.Row)
		}
		return err
	}

	L.Info(ctx, "feature matrix written",
		"rows", stats.Rows,
		"positives", stats.Positives,
		"columns", schema.Width(),
		"schema_version", schema.Version(),
		"out", outPath,
	)
	return nil
}
