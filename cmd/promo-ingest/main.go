// Command promo-ingest bulk-loads promocodes from gzip-compressed partner
// dumps (one code per line). Files are scanned concurrently; a bloom filter
// keeps the cross-file duplicate set out of memory, and survivors are
// upserted with a campaign-wide rule.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/topup-store/internal/domain/promocode"
	"github.com/xenking/topup-store/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 4
	maxCodeLen    = 32
)

func main() {
	var (
		dataDir     string
		databaseURL string
		percent     string
		maxUses     int
		ttl         time.Duration
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz promocode dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&percent, "discount-percent", "10", "discount percentage for ingested codes")
	flag.IntVar(&maxUses, "max-redemptions", 100, "redemption limit per ingested code")
	flag.DurationVar(&ttl, "ttl", 30*24*time.Hour, "validity window for ingested codes")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, percent, maxUses, ttl); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, percent string, maxUses int, ttl time.Duration) error {
	pct, err := decimal.NewFromString(percent)
	if err != nil {
		return errors.Wrap(err, "parse discount percentage")
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list dump files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz files in %s", dataDir)
	}

	slog.Info("scanning dumps", slog.Int("files", len(files)))

	codes, err := collectCodes(ctx, files)
	if err != nil {
		return errors.Wrap(err, "collect codes")
	}
	slog.Info("unique codes found", slog.Int("count", len(codes)))

	if len(codes) == 0 {
		slog.Info("no codes to insert")
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewPromocodeRepository(pool)
	expiresAt := time.Now().Add(ttl)

	for i, code := range codes {
		err := repo.Upsert(ctx, &promocode.Promocode{
			Code:            code,
			DiscountPercent: pct,
			MaxRedemptions:  maxUses,
			ExpiresAt:       expiresAt,
			Active:          true,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert code %s", code)
		}
		if (i+1)%10_000 == 0 {
			slog.Info("insert progress", slog.Int("inserted", i+1))
		}
	}

	slog.Info("codes written", slog.Int("count", len(codes)))
	return nil
}

// collectCodes streams every file concurrently and returns the deduplicated
// set of well-formed codes. The bloom filter answers "probably seen" cheaply;
// the map behind it holds only codes that passed the filter check, so the
// false-positive rate bounds the amount of exact bookkeeping.
func collectCodes(ctx context.Context, files []string) ([]string, error) {
	var (
		mu     sync.Mutex
		filter = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		seen   = make(map[string]struct{})
		codes  []string
	)

	g, ctx := errgroup.WithContext(ctx)
	for idx, path := range files {
		g.Go(func() error {
			var count uint64
			err := streamGzFile(ctx, path, func(line string) {
				code := promocode.Normalize(line)
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("scan progress",
						slog.Int("file", idx+1),
						slog.Uint64("lines", count),
					)
				}

				mu.Lock()
				defer mu.Unlock()
				if filter.TestString(code) {
					// Probable duplicate: confirm against the exact set.
					if _, dup := seen[code]; dup {
						return
					}
				}
				filter.AddString(code)
				seen[code] = struct{}{}
				codes = append(codes, code)
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d", idx+1)
			}

			slog.Info("scan complete", slog.Int("file", idx+1), slog.Uint64("lines", count))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return codes, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
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
		fn(strings.TrimSpace(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
