package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/dataset"
	"github.com/tinytelemetry/litclock/internal/duckdb"
	"github.com/tinytelemetry/litclock/internal/importer"
	"github.com/tinytelemetry/litclock/internal/logging"
	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/prefs"
	"github.com/tinytelemetry/litclock/internal/publish"
	"github.com/tinytelemetry/litclock/internal/quote"
)

const printWidth = 72

// ErrValidation is returned by validate when the dataset has errors.
var ErrValidation = errors.New("dataset has validation errors")

func (c *cli) stderrLogger() (*zap.Logger, func()) {
	logger, cleanup, err := logging.New(logging.Config{Verbose: c.verbose})
	if err != nil {
		return zap.NewNop(), func() {}
	}
	return logger, cleanup
}

func (c *cli) openStore() (*duckdb.Store, *zap.Logger, func(), error) {
	logger, cleanupLogger := c.stderrLogger()
	store, err := duckdb.NewStore(c.cfg.DBPath, duckdb.WithQueryTimeout(c.cfg.QueryTimeout), duckdb.WithLogger(logger))
	if err != nil {
		cleanupLogger()
		return nil, nil, nil, fmt.Errorf("failed to open quote store: %w", err)
	}
	return store, logger, func() {
		_ = store.Close()
		cleanupLogger()
	}, nil
}

func newNowCmd(c *cli) *cobra.Command {
	var (
		tz    string
		use24 bool
		at    string
	)
	cmd := &cobra.Command{
		Use:   "now",
		Short: "Print the quote for the current minute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := prefs.NewFileStore(c.cfg.PrefsPath, zap.NewNop()).Load()
			if !cmd.Flags().Changed("tz") {
				tz = p.Timezone
			}
			if !cmd.Flags().Changed("24h") {
				use24 = p.Use24Hour
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", tz, err)
			}

			t := model.TimeOfDayFrom(time.Now().In(loc))
			if at != "" {
				if t, err = model.ParseMinuteKey(at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			store, closeStore, err := newPartitionStore(c.cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer closeStore()
			if err := store.EnsureLoaded(cmd.Context(), t.HourKey()); err != nil {
				return err
			}

			digital := quote.FormatDigital(t, use24)
			fmt.Fprintln(c.out, digital)
			q, ok := quote.NewResolver(store, nil).Resolve(t, use24)
			if !ok {
				fmt.Fprintln(c.out, "No quote available")
				return nil
			}
			printQuote(c, quote.Display(q))
			return nil
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone (default from prefs)")
	cmd.Flags().BoolVar(&use24, "24h", false, "prefer 24-hour quotes")
	cmd.Flags().StringVar(&at, "at", "", "use this HH:MM instead of the current time")
	return cmd
}

func printQuote(c *cli, q model.QuoteRecord) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, wordwrap.String(q.Excerpt(), printWidth))
	attribution := "— " + q.Title
	if q.Author != "" {
		attribution += ", " + q.Author
	}
	fmt.Fprintln(c.out, "  "+attribution)
}

func newSplitCmd(c *cli) *cobra.Command {
	var ver string
	cmd := &cobra.Command{
		Use:   "split <dataset>... <out-dir>",
		Short: "Split datasets into 24 hour partitions",
		Long:  "Merge one or more datasets, dropping duplicate quotes, and write the 24 hour partitions.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			files, outDir := args[:len(args)-1], args[len(args)-1]
			ds, err := dataset.LoadFiles(files...)
			if err != nil {
				return err
			}
			if ver == "" {
				ver = dataset.Version(ds)
			}
			m, err := dataset.WritePartitions(outDir, dataset.Split(ds), ver)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "wrote %d quotes to %s (version %s)\n", m.Total, outDir, m.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&ver, "version", "", "version token (default: content hash)")
	return cmd
}

func newValidateCmd(c *cli) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "validate <dataset>",
		Short: "Check a dataset for structural and integrity problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ds, err := dataset.LoadFile(args[0])
			if err != nil {
				return err
			}
			issues := dataset.Validate(ds)
			errs := dataset.Errors(issues)
			for _, i := range issues {
				if quiet && i.Severity != dataset.SeverityError {
					continue
				}
				fmt.Fprintln(c.out, i.String())
			}
			fmt.Fprintf(c.out, "%d quotes, %d errors, %d warnings\n", ds.Count(), len(errs), len(issues)-len(errs))
			if len(errs) > 0 {
				return ErrValidation
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [dataset]",
		Short: "Print minute coverage and per-hour counts",
		Long:  "Print coverage for a dataset file, or for the configured source when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st model.DatasetStats
			if len(args) == 1 {
				ds, err := dataset.LoadFile(args[0])
				if err != nil {
					return err
				}
				st = dataset.Stats(ds)
			} else {
				store, closeStore, err := newPartitionStore(c.cfg, zap.NewNop())
				if err != nil {
					return err
				}
				defer closeStore()
				if err := store.LoadAll(cmd.Context()); err != nil {
					return err
				}
				if st, err = store.Stats(cmd.Context()); err != nil {
					return err
				}
			}
			printStats(c, st)
			return nil
		},
	}
	return cmd
}

func printStats(c *cli, st model.DatasetStats) {
	pct := 100 * float64(st.MinutesCovered) / float64(model.MinutesPerDay)
	fmt.Fprintf(c.out, "Total quotes:    %d\n", st.Total)
	fmt.Fprintf(c.out, "Minutes covered: %d/%d (%.1f%%)\n", st.MinutesCovered, model.MinutesPerDay, pct)
	fmt.Fprintf(c.out, "Missing minutes: %d\n", model.MinutesPerDay-st.MinutesCovered)
	fmt.Fprintln(c.out)
	maxCount := 1
	for _, n := range st.ByHour {
		maxCount = max(maxCount, n)
	}
	for h, n := range st.ByHour {
		bar := strings.Repeat("█", n*40/maxCount)
		fmt.Fprintf(c.out, "%s %5d %s\n", model.HourKey(h), n, bar)
	}
}

func newImportCmd(c *cli) *cobra.Command {
	var (
		force bool
		ver   string
	)
	cmd := &cobra.Command{
		Use:   "import <dataset>...",
		Short: "Validate datasets and load them into the quote store",
		Long:  "Merge one or more datasets, dropping duplicate quotes, validate the result and replace the stored dataset.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, logger, closeStore, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := importer.Files(cmd.Context(), store, args, importer.Options{
				Version: ver,
				Force:   force,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "imported %d quotes as version %s (%d warnings)\n", res.Quotes, res.Version, res.Warnings)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "import even when validation reports errors")
	cmd.Flags().StringVar(&ver, "version", "", "version token (default: content hash)")
	return cmd
}

func newPublishCmd(c *cli) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "publish [dataset...]",
		Short: "Write a versioned partition set for static hosting",
		Long:  "Publish the merged dataset files, or the dataset currently in the quote store, as {out}/{version}/HH.json.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = c.cfg.PublishOutDir
			}
			store, logger, closeStore, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ds, ver, err := publishSource(cmd.Context(), store, args)
			if err != nil {
				return err
			}
			pub, err := publish.NewPublisher(publishConfig(c.cfg, outDir), store, logger)
			if err != nil {
				return err
			}
			m, err := pub.Publish(cmd.Context(), ds, ver)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "published version %s (%d quotes) to %s\n", m.Version, m.Total, outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default publish-out-dir)")
	return cmd
}

func publishSource(ctx context.Context, store *duckdb.Store, args []string) (dataset.Dataset, string, error) {
	if len(args) > 0 {
		ds, err := dataset.LoadFiles(args...)
		return ds, "", err
	}
	cur, err := store.CurrentVersion(ctx)
	if err != nil {
		return nil, "", err
	}
	ds, err := store.Dataset(ctx)
	return ds, cur.Version, err
}

func publishConfig(cfg appConfig, outDir string) publish.Config {
	return publish.Config{
		OutDir:         outDir,
		KeepLast:       cfg.PublishKeepLast,
		Snapshot:       cfg.PublishSnapshot,
		BucketURL:      cfg.PublishBucketURL,
		S3Endpoint:     cfg.PublishS3Endpoint,
		S3Region:       cfg.PublishS3Region,
		S3AccessKey:    cfg.PublishS3AccessKey,
		S3SecretKey:    cfg.PublishS3SecretKey,
		S3SessionToken: cfg.PublishS3SessionToken,
		S3UseSSL:       cfg.PublishS3UseSSL,
	}
}

func newQueryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SQL query against the quote store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, closeStore, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			rows, err := store.ExecuteQuery(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			for _, row := range rows {
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
