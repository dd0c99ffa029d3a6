// Package importer loads a dataset file, checks it, and replaces the
// stored dataset with it.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/dataset"
)

// ErrInvalidDataset is returned when validation finds errors.
var ErrInvalidDataset = errors.New("importer: dataset has validation errors")

// Target receives an imported dataset.
type Target interface {
	ReplaceDataset(ctx context.Context, ds dataset.Dataset, version, source string) (int, error)
}

// Result describes one import.
type Result struct {
	Version  string
	Quotes   int
	Warnings int
	Issues   []dataset.Issue
}

// Options tune an import.
type Options struct {
	// Version overrides the content-derived version token.
	Version string
	// Force imports even when validation reports errors.
	Force  bool
	Logger *zap.Logger
}

// File imports the dataset at path into target.
func File(ctx context.Context, target Target, path string, opts Options) (Result, error) {
	return Files(ctx, target, []string{path}, opts)
}

// Files merges the datasets at paths, dropping duplicate quotes, and
// imports the result into target.
func Files(ctx context.Context, target Target, paths []string, opts Options) (Result, error) {
	if len(paths) == 0 {
		return Result{}, errors.New("importer: no dataset files given")
	}
	ds, err := dataset.LoadFiles(paths...)
	if err != nil {
		return Result{}, err
	}
	return Dataset(ctx, target, ds, strings.Join(paths, ","), opts)
}

// Dataset imports ds into target, recording source in the history.
func Dataset(ctx context.Context, target Target, ds dataset.Dataset, source string, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	issues := dataset.Validate(ds)
	errs := dataset.Errors(issues)
	res := Result{Issues: issues, Warnings: len(issues) - len(errs)}
	if len(errs) > 0 {
		for _, i := range errs {
			logger.Warn("dataset issue", zap.String("issue", i.String()))
		}
		if !opts.Force {
			return res, fmt.Errorf("%w: %d errors, first: %s", ErrInvalidDataset, len(errs), errs[0])
		}
	}

	res.Version = opts.Version
	if res.Version == "" {
		res.Version = dataset.Version(ds)
	}
	n, err := target.ReplaceDataset(ctx, ds, res.Version, source)
	if err != nil {
		return res, fmt.Errorf("replace dataset: %w", err)
	}
	res.Quotes = n
	logger.Info("dataset imported",
		zap.String("source", source),
		zap.String("version", res.Version),
		zap.Int("quotes", n),
		zap.Int("warnings", res.Warnings))
	return res, nil
}
