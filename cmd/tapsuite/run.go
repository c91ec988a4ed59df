package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-tap/internal/config"
	"github.com/cwbudde/algo-tap/internal/logging"
	"github.com/cwbudde/algo-tap/internal/metrics"
	"github.com/cwbudde/algo-tap/tap/normalize"
	"github.com/cwbudde/algo-tap/tap/parse"
	"github.com/cwbudde/algo-tap/tap/registry"
	"github.com/cwbudde/algo-tap/tap/session"
	"github.com/cwbudde/algo-tap/tap/storage"
)

var errUsage = errors.New("usage")

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tapsuite", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "", "YAML configuration file")
	kindName := fs.String("kind", "auto", "input kind: auto, raw, tabular or serialized")
	baseline := fs.String("baseline", "", "baseline window `start,end` in seconds; enables baseline correction")
	smooth := fs.Bool("smooth", false, "enable Savitzky-Golay smoothing")
	window := fs.Int("window", 0, "smoothing window size (positive odd)")
	order := fs.Int("order", -1, "smoothing polynomial order")
	inert := fs.String("inert", "", "normalize all species against this key")
	out := fs.String("out", "", "output directory")
	backend := fs.String("store", "", "snapshot store: memory, dir or s3")
	storeDir := fs.String("store-dir", "", "snapshot directory for -store dir")
	metricsFile := fs.String("metrics", "", "write Prometheus metrics to this file")
	list := fs.Bool("list", false, "list parsed datasets and exit")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: tapsuite [flags] file ...\n\n")
		_, _ = fmt.Fprintf(stderr, "Corrects and normalizes TAP pulse responses and writes xlsx workbooks.\n\n")
		_, _ = fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(stderr, "\nExamples:\n")
		_, _ = fmt.Fprintf(stderr, "  tapsuite -baseline 0.1,0.3 -smooth -window 11 -order 3 run.xlsx\n")
		_, _ = fmt.Fprintf(stderr, "  tapsuite -inert 40.0 -out results *.dat\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: no input files", errUsage)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}

	// Flags given on the command line override the file.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "baseline":
			start, end, err := parseWindow(*baseline)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Correction.Baseline = config.BaselineConfig{Enabled: true, Start: start, End: end}
		case "smooth":
			cfg.Correction.Smoothing.Enabled = *smooth
		case "window":
			cfg.Correction.Smoothing.WindowSize = *window
		case "order":
			cfg.Correction.Smoothing.Order = *order
		case "inert":
			cfg.Normalization.Inert = *inert
		case "out":
			cfg.Output.Dir = *out
		case "store":
			cfg.Storage.Backend = *backend
		case "store-dir":
			cfg.Storage.Dir = *storeDir
		case "metrics":
			cfg.Metrics.Textfile = *metricsFile
		case "v":
			if *verbose {
				cfg.Log.Level = "debug"
			}
		}
	})
	if flagErr != nil {
		return flagErr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	kind, err := parse.ParseKind(*kindName)
	if err != nil {
		return err
	}

	log, err := logging.New(
		logging.WithLevel(cfg.Log.Level),
		logging.WithDevelopment(cfg.Log.Development),
		logging.WithOutput(stderr),
	)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	s, err := session.New(ctx, store,
		session.WithLogger(log),
		session.WithMetrics(metrics.New(reg)),
		session.WithClearOnStart(cfg.Storage.ClearOnStart),
	)
	if err != nil {
		return err
	}

	files := make([]parse.File, 0, fs.NArg())
	for _, name := range fs.Args() {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		files = append(files, parse.File{Name: filepath.Base(name), Data: data, Kind: kind})
	}
	if _, err := s.Upload(ctx, files); err != nil {
		return err
	}

	printDatasets(stdout, s.Registry())
	if *list {
		return nil
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return err
	}
	params := cfg.Correction.Params()
	for _, key := range s.Registry().Keys() {
		if _, err := s.Correct(ctx, key, params); err != nil {
			return err
		}
		var buf bytes.Buffer
		name, err := s.ExportSingle(ctx, key, &buf)
		if err != nil {
			return err
		}
		if err := writeOutput(cfg.Output.Dir, name, buf.Bytes(), log); err != nil {
			return err
		}
	}

	if cfg.Normalization.Inert != "" {
		res, err := s.Normalize(ctx, cfg.Normalization.Inert)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		name, err := s.ExportNormalized(ctx, &buf)
		if err != nil {
			return err
		}
		if err := writeOutput(cfg.Output.Dir, name, buf.Bytes(), log); err != nil {
			return err
		}
		printCoefficients(stdout, res)
	}

	if cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func parseWindow(s string) (float64, float64, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: -baseline wants start,end, got %q", errUsage, s)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: -baseline start: %w", errUsage, err)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: -baseline end: %w", errUsage, err)
	}
	return start, end, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendDir:
		return storage.NewDir(cfg.Dir)
	case config.BackendS3:
		cli, err := storage.NewS3Client(ctx, storage.S3Config{
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3(cli, cfg.S3.Bucket, cfg.S3.Prefix)
	default:
		return storage.NewMemory(), nil
	}
}

func writeOutput(dir, name string, data []byte, log *zap.Logger) error {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return err
	}
	log.Debug("wrote workbook", zap.String("path", p), zap.Int("bytes", len(data)))
	return nil
}

func printDatasets(w io.Writer, reg registry.Registry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Key\tAMU\tPulses\tPoints\tGain\tCollection [s]\tSpacing [s]\tIndex\n")
	_, _ = fmt.Fprintf(tw, "---\t---\t------\t------\t----\t--------------\t-----------\t-----\n")
	for _, key := range reg.Keys() {
		d, err := reg.Get(key)
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%.3f\t%d\t%d\t%d\t%.4g\t%.4g\t%d\n",
			key, d.AMU, d.NPulses, d.NDatapoints, d.Gain, d.CollectionTime, d.PulseSpacing, d.Index)
	}
	_ = tw.Flush()
}

func printCoefficients(w io.Writer, res normalize.Result) {
	ref := normalize.MaxAreaPulse(res.Areas[res.Inert])
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "\nPulse\tInert area\tCoefficient\n")
	_, _ = fmt.Fprintf(tw, "-----\t----------\t-----------\n")
	for i, c := range res.Coefficients {
		mark := ""
		if i == ref {
			mark = " *"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%.6g\t%.6f%s\n", i+1, res.Areas[res.Inert][i], c, mark)
	}
	_ = tw.Flush()
}
