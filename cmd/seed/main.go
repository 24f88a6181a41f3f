// Command seed assigns stock photography to the catalog and re-hosts it on
// the media host.
//
//	seed -task products -report seed-report.xlsx
//	seed -task banners
//	seed -task sync
//	seed -task clean
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/evimeria/evimeria-api/internal/classifier"
	"github.com/evimeria/evimeria-api/internal/config"
	"github.com/evimeria/evimeria-api/internal/imagepool"
	"github.com/evimeria/evimeria-api/internal/imaging"
	"github.com/evimeria/evimeria-api/internal/logging"
	"github.com/evimeria/evimeria-api/internal/mediahost"
	"github.com/evimeria/evimeria-api/internal/metrics"
	"github.com/evimeria/evimeria-api/internal/seeding"
	"github.com/evimeria/evimeria-api/models"
)

const (
	taskProducts = "products"
	taskBanners  = "banners"
	taskSync     = "sync"
	taskClean    = "clean"
)

var tasks = []string{taskProducts, taskBanners, taskSync, taskClean}

type options struct {
	task       string
	reportPath string
	configPath string
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.task, "task", taskProducts, "task to run: "+strings.Join(tasks, ", "))
	fs.StringVar(&opts.reportPath, "report", "", "write the run report to this .xlsx file")
	fs.StringVar(&opts.configPath, "config", "", "YAML config file, overrides "+config.ConfigPathEnvVar)
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	opts.task = strings.ToLower(strings.TrimSpace(opts.task))
	for _, t := range tasks {
		if opts.task == t {
			return opts, nil
		}
	}
	return opts, fmt.Errorf("unknown task %q, expected one of: %s", opts.task, strings.Join(tasks, ", "))
}

// runner is the part of *seeding.Seeder the command drives.
type runner interface {
	Run(ctx context.Context) (*seeding.Report, error)
	AssignCategoryBanners(ctx context.Context) (*seeding.Report, error)
	SyncFromMediaHost(ctx context.Context) (*seeding.Report, error)
	Clean(ctx context.Context) (seeding.CleanResult, error)
}

// runTask runs one task. Clean has no per item report and returns nil.
func runTask(ctx context.Context, r runner, task string) (*seeding.Report, error) {
	switch task {
	case taskProducts:
		return r.Run(ctx)
	case taskBanners:
		return r.AssignCategoryBanners(ctx)
	case taskSync:
		return r.SyncFromMediaHost(ctx)
	case taskClean:
		res, err := r.Clean(ctx)
		if err != nil {
			return nil, err
		}
		logging.Info().Int64("records", res.Records).Int("resources", res.Resources).Msg("clean finished")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}
}

func buildClassifier(cfg config.ClassifierConfig) (*classifier.Classifier, error) {
	fallback := classifier.Tag(cfg.Fallback)
	if cfg.RulesFile == "" {
		return classifier.Default(fallback), nil
	}
	rules, err := classifier.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return classifier.New(rules, fallback), nil
}

func buildPools(path string) (*imagepool.Table, error) {
	if path == "" {
		return imagepool.DefaultTable(), nil
	}
	return imagepool.LoadTableFile(path)
}

func writeReport(path string, report *seeding.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteXLSX(f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

const (
	metricsJob         = "evimeria_seed"
	metricsPushTimeout = 10 * time.Second
)

// runMetrics returns the registry the run records into, or nil when no
// Pushgateway is configured.
func runMetrics(cfg config.SeedingConfig) *metrics.Registry {
	if cfg.PushURL == "" {
		return nil
	}
	return metrics.New()
}

// pushRunMetrics sends the run's metrics to the Pushgateway, grouped by task.
func pushRunMetrics(ctx context.Context, registry *metrics.Registry, gatewayURL, task string) error {
	ctx, cancel := context.WithTimeout(ctx, metricsPushTimeout)
	defer cancel()
	return registry.Push(ctx, gatewayURL, metricsJob, map[string]string{"task": task})
}

func newSeeder(cfg *config.Config, recorder seeding.Recorder) (*seeding.Seeder, func(), error) {
	if err := cfg.RequireMedia(); err != nil {
		return nil, nil, err
	}

	c, err := buildClassifier(cfg.Classifier)
	if err != nil {
		return nil, nil, err
	}
	pools, err := buildPools(cfg.Seeding.PoolsFile)
	if err != nil {
		return nil, nil, err
	}

	media, err := mediahost.NewClient(mediahost.ClientOpts{
		BaseURL:   cfg.Media.BaseURL,
		CloudName: cfg.Media.CloudName,
		APIKey:    cfg.Media.APIKey,
		APISecret: cfg.Media.APISecret,
		Timeout:   cfg.Media.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	db, err := models.OpenDB(models.DBOptions{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogQueries:      cfg.Database.LogQueries,
	})
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	banners := cfg.Seeding.Banners
	if len(banners) == 0 {
		banners = seeding.DefaultBanners()
	}
	transcode := imaging.Options{
		MaxDimension: cfg.Seeding.MaxDimension,
		Quality:      cfg.Seeding.JPEGQuality,
	}

	s, err := seeding.New(seeding.Deps{
		Products:   models.NewProductsRepository(db),
		Images:     models.NewProductImagesRepository(db),
		Categories: models.NewCategoriesRepository(db),
		Classifier: c,
		Pools:      pools,
		Fetcher:    imaging.NewFetcher(imaging.FetcherOpts{Timeout: cfg.Seeding.FetchTimeout}),
		Media:      media,
		Recorder:   recorder,
		Logger:     logging.With().Str("component", "seeding").Logger(),
	}, seeding.Options{
		Root:            cfg.Media.Root,
		PublishedOnly:   cfg.Seeding.PublishedOnly,
		Pace:            cfg.Seeding.Pace,
		Transcode:       transcode,
		BannerTranscode: imaging.Options{Quality: cfg.Seeding.JPEGQuality},
		Banners:         banners,
	})
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return s, closeDB, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.configPath != "" {
		os.Setenv(config.ConfigPathEnvVar, opts.configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	registry := runMetrics(cfg.Seeding)
	var recorder seeding.Recorder
	if registry != nil {
		recorder = registry
	}

	s, closeDB, err := newSeeder(cfg, recorder)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to set up seeding")
	}
	defer closeDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("task", opts.task).Str("root", cfg.Media.Root).Msg("seeding started")
	report, err := runTask(ctx, s, opts.task)
	if report != nil {
		fmt.Println(report)
		for _, res := range report.Failed() {
			logging.Warn().Uint("id", res.ID).Str("name", res.Name).Str("reason", res.Reason).Msg("item failed")
		}
		if opts.reportPath != "" {
			if werr := writeReport(opts.reportPath, report); werr != nil {
				logging.Error().Err(werr).Msg("failed to write report")
			} else {
				logging.Info().Str("path", opts.reportPath).Msg("report written")
			}
		}
	}
	if registry != nil {
		if perr := pushRunMetrics(context.Background(), registry, cfg.Seeding.PushURL, opts.task); perr != nil {
			logging.Error().Err(perr).Msg("failed to push metrics")
		} else {
			logging.Info().Str("gateway", cfg.Seeding.PushURL).Msg("metrics pushed")
		}
	}
	if err != nil {
		logging.Error().Err(err).Str("task", opts.task).Msg("seeding aborted")
		closeDB()
		os.Exit(1)
	}
}
