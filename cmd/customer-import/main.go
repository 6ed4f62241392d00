// Command customer-import loads customer group assignments from gzip CSV
// exports ("customer_id,group_id" per line) into the customers table.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-group-discount/internal/repository"
)

func main() {
	var (
		databaseURL string
		pattern     string
		capacity    uint
		fpr         float64
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&pattern, "files", "data/customers*.csv.gz", "glob of export files, applied in lexical order")
	flag.UintVar(&capacity, "bloom-capacity", 10_000_000, "expected customer ids per file")
	flag.Float64Var(&fpr, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, pattern, capacity, fpr); err != nil {
		lg.Fatal("Customer import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, pattern string, capacity uint, fpr float64) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "glob files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %q", pattern)
	}
	slices.Sort(files)

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	im := newImporter(lg, repository.NewCustomerRepository(pool), capacity, fpr)
	return im.Run(ctx, files)
}
