package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geocoder-cli/internal/export"
	"github.com/sells-group/geocoder-cli/internal/translate"
	"github.com/sells-group/geocoder-cli/pkg/geocode"
)

var (
	batchJobsFile    string
	batchOutputDir   string
	batchConcurrency int
	batchRateLimit   float64
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Geocode a list of queries from a YAML job file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queries, err := loadJobs(batchJobsFile)
		if err != nil {
			return err
		}

		session, err := geocode.NewSession(cfg.SessionOptions())
		if err != nil {
			return err
		}
		defer session.Close()

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.Concurrency
		}
		rps := batchRateLimit
		if rps == 0 {
			rps = cfg.Batch.RateLimit
		}

		return processBatch(ctx, queries, concurrency, rps, batchOutputDir, session.Geocode)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchJobsFile, "jobs", "batch.yaml", "YAML file listing queries")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", ".", "directory for GeoJSON results")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max in-flight queries (default from config)")
	batchCmd.Flags().Float64Var(&batchRateLimit, "rate", 0, "max queries per second, 0 for unlimited (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// jobFile is the schema of the --jobs YAML file.
type jobFile struct {
	Queries []string `yaml:"queries"`
}

func loadJobs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read jobs file %s", path)
	}

	var jobs jobFile
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, eris.Wrapf(err, "batch: parse jobs file %s", path)
	}

	queries := make([]string, 0, len(jobs.Queries))
	for _, q := range jobs.Queries {
		q = strings.TrimSpace(q)
		if q != "" {
			queries = append(queries, q)
		}
	}
	return queries, nil
}

// geocodeFunc is the callback signature for resolving a single query.
type geocodeFunc func(ctx context.Context, query string) (*translate.ResultSet, error)

// processBatch geocodes queries concurrently, writing one GeoJSON file per
// query into outDir. Individual failures are logged and do not abort the run.
func processBatch(ctx context.Context, queries []string, concurrency int, rps float64, outDir string, geocode geocodeFunc) error {
	if len(queries) == 0 {
		zap.L().Info("no queries to process")
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	zap.L().Info("processing batch",
		zap.Int("queries", len(queries)),
		zap.Int("concurrency", concurrency),
		zap.Float64("rate", rps),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, query := range queries {
		g.Go(func() error {
			log := zap.L().With(zap.String("query", query))

			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}

			rs, err := geocode(gctx, query)
			if err != nil {
				failed.Add(1)
				log.Error("geocoding failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			data, err := export.GeoJSON(rs)
			if err != nil {
				failed.Add(1)
				log.Error("encoding failed", zap.Error(err))
				return nil
			}

			path := filepath.Join(outDir, querySlug(query)+".geojson")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				failed.Add(1)
				log.Error("write failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			log.Info("query complete", zap.Int("results", rs.Len()), zap.String("file", path))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

// querySlug derives a filesystem-safe name from a query string.
func querySlug(query string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, query)
	slug = strings.Trim(slug, "_")
	if len(slug) > 64 {
		slug = slug[:64]
	}
	if slug == "" {
		slug = "query"
	}
	return slug
}
