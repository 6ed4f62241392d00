package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-group-discount/internal/domain/customer"
)

const progressEvery = 1_000_000

// record is one "customer_id,group_id" line of an export.
type record struct {
	id    string
	group string
}

// parseRecord parses a CSV line. The header line and lines without a
// customer id are rejected.
func parseRecord(line string) (record, bool) {
	id, group, _ := strings.Cut(line, ",")
	id = strings.TrimSpace(id)
	group = strings.TrimSpace(group)
	if id == "" || id == "customer_id" {
		return record{}, false
	}
	return record{id: id, group: group}, true
}

type stats struct {
	lines    atomic.Uint64
	skipped  atomic.Uint64
	direct   atomic.Uint64
	deferred atomic.Uint64
}

// importer loads customer group exports into the customer repository.
//
// Exports are processed concurrently. A customer id present in several
// files takes the group of the last file in argument order: pass 1 builds a
// bloom filter of the ids of every file, pass 2 upserts records whose id no
// other filter may contain and defers the rest, which are then applied in
// file order.
type importer struct {
	lg        *zap.Logger
	customers customer.Repository
	capacity  uint
	fpr       float64

	stats stats
}

func newImporter(lg *zap.Logger, customers customer.Repository, capacity uint, fpr float64) *importer {
	return &importer{
		lg:        lg,
		customers: customers,
		capacity:  capacity,
		fpr:       fpr,
	}
}

func (im *importer) Run(ctx context.Context, files []string) error {
	im.lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build filters")
	}

	im.lg.Info("Pass 2: importing customers")
	deferred, err := im.importFiles(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "import files")
	}

	// Later files override earlier ones.
	merged := make(map[string]record)
	for _, recs := range deferred {
		for id, rec := range recs {
			merged[id] = rec
		}
	}
	im.lg.Info("Applying customers present in several files", zap.Int("count", len(merged)))
	for _, rec := range merged {
		if err := im.upsert(ctx, rec); err != nil {
			return err
		}
	}

	im.lg.Info("Import completed",
		zap.Uint64("lines", im.stats.lines.Load()),
		zap.Uint64("skipped", im.stats.skipped.Load()),
		zap.Uint64("direct", im.stats.direct.Load()),
		zap.Uint64("deferred", im.stats.deferred.Load()),
	)
	return nil
}

func (im *importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(im.capacity, im.fpr)
			if err := streamGzFile(ctx, path, func(rec record) error {
				filter.AddString(rec.id)
				return nil
			}, nil); err != nil {
				return errors.Wrapf(err, "file %d", i+1)
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// importFiles upserts records unique to their file and returns the deferred
// records of every file, indexed like files.
func (im *importer) importFiles(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]map[string]record, error) {
	deferred := make([]map[string]record, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			held := make(map[string]record)
			var count uint64
			err := streamGzFile(ctx, path, func(rec record) error {
				count++
				im.stats.lines.Add(1)
				if count%progressEvery == 0 {
					im.lg.Info("Pass 2 progress", zap.Int("file", i+1), zap.Uint64("lines", count))
				}

				if inOtherFile(filters, i, rec.id) {
					held[rec.id] = rec
					im.stats.deferred.Add(1)
					return nil
				}
				im.stats.direct.Add(1)
				return im.upsert(ctx, rec)
			}, func() { im.stats.skipped.Add(1) })
			if err != nil {
				return errors.Wrapf(err, "file %d", i+1)
			}

			im.lg.Info("Pass 2 complete",
				zap.Int("file", i+1),
				zap.Uint64("lines", count),
				zap.Int("deferred", len(held)),
			)
			deferred[i] = held
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return deferred, nil
}

func inOtherFile(filters []*bloom.BloomFilter, idx int, id string) bool {
	for j, f := range filters {
		if j != idx && f.TestString(id) {
			return true
		}
	}
	return false
}

func (im *importer) upsert(ctx context.Context, rec record) error {
	if err := im.customers.Upsert(ctx, customer.Customer{ID: rec.id, GroupID: rec.group}); err != nil {
		return errors.Wrapf(err, "upsert customer %s", rec.id)
	}
	return nil
}

// streamGzFile calls fn for every valid record of a gzip-compressed CSV file
// and skip for every rejected line.
func streamGzFile(ctx context.Context, path string, fn func(rec record) error, skip func()) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok := parseRecord(scanner.Text())
		if !ok {
			if skip != nil {
				skip()
			}
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
