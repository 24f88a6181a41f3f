// Package seeding assigns stock photography to catalog products and
// categories and re-hosts it on the media host.
//
// A run walks products one at a time, grouped by category. For each product
// it deletes the existing image records, classifies the name, picks the next
// images of the matching pool, downloads and transcodes them, uploads them
// under a deterministic public id and stores the returned URLs. Deleting
// first makes a second run produce the same records instead of doubling
// them. A failing product is recorded in the report and the run moves on;
// there is no retry and nothing is rolled back.
package seeding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/evimeria/evimeria-api/internal/classifier"
	"github.com/evimeria/evimeria-api/internal/imagepool"
	"github.com/evimeria/evimeria-api/internal/imaging"
	"github.com/evimeria/evimeria-api/internal/mediahost"
	"github.com/evimeria/evimeria-api/internal/slug"
	"github.com/evimeria/evimeria-api/models"
)

type ProductStore interface {
	ListForImageSeeding(publishedOnly bool) ([]models.Product, error)
	ListByCategory(categoryID uint, publishedOnly bool) ([]models.Product, error)
	CountCoverage(publishedOnly bool) (total int64, withImages int64, err error)
}

type ImageStore interface {
	DeleteByProduct(productID uint) (int64, error)
	CreateImage(image *models.ProductImage) error
	DeleteAll() (int64, error)
}

type CategoryStore interface {
	ListCategories() ([]models.Category, error)
	UpdateImage(categoryID uint, imageURL string) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type MediaHost interface {
	Upload(ctx context.Context, publicID string, data []byte) (string, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	ListByPrefix(ctx context.Context, prefix string) ([]mediahost.Resource, error)
	SubFolders(ctx context.Context, path string) ([]mediahost.Folder, error)
}

// Recorder receives one observation per processed product.
type Recorder interface {
	ObserveSeedItem(tag, status string, images int, elapsed time.Duration)
}

type Deps struct {
	Products   ProductStore
	Images     ImageStore
	Categories CategoryStore
	Classifier *classifier.Classifier
	Pools      *imagepool.Table
	Fetcher    Fetcher
	Media      MediaHost
	// Recorder is optional.
	Recorder Recorder
	Logger   zerolog.Logger
}

type Options struct {
	// Root is the top media host folder, e.g. "evimeria".
	Root          string
	PublishedOnly bool
	// Pace is the minimum delay between two products. Zero means no pacing.
	Pace      time.Duration
	Transcode imaging.Options
	// BannerTranscode applies to category banners.
	BannerTranscode imaging.Options
	// Banners maps a category slug to the source image of its banner.
	Banners map[string]string
}

type Seeder struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) (*Seeder, error) {
	switch {
	case deps.Products == nil, deps.Images == nil, deps.Categories == nil:
		return nil, errors.New("seeding: stores are required")
	case deps.Classifier == nil, deps.Pools == nil:
		return nil, errors.New("seeding: classifier and image pools are required")
	case deps.Fetcher == nil, deps.Media == nil:
		return nil, errors.New("seeding: fetcher and media host are required")
	}
	opts.Root = strings.Trim(strings.TrimSpace(opts.Root), "/")
	if opts.Root == "" {
		return nil, errors.New("seeding: media root is required")
	}
	if opts.BannerTranscode.MaxDimension == 0 {
		opts.BannerTranscode.MaxDimension = 1200
	}
	return &Seeder{deps: deps, opts: opts, now: time.Now}, nil
}

// ProductPublicID is the media host id of one product image:
// <root>/products/<category>/<tag>/<name>_<id>_<slot>.
func ProductPublicID(root, category string, tag classifier.Tag, name string, id uint, slot imagepool.Slot) string {
	return fmt.Sprintf("%s/products/%s/%s/%s_%d_%s",
		root, slug.Segment(category), slug.Segment(string(tag)), slug.Segment(name), id, slot)
}

// CategoryPublicID is the media host id of a category banner.
func CategoryPublicID(root, categorySlug string) string {
	return fmt.Sprintf("%s/categories/category_%s", root, strings.ToLower(categorySlug))
}

func (s *Seeder) pacer() *rate.Limiter {
	if s.opts.Pace <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(s.opts.Pace), 1)
}

// Run seeds every product in scope and returns the report. The error is
// non-nil only when the run could not start or ctx was cancelled; per
// product failures are in the report.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	report := newReport("products", s.now())
	defer func() { report.FinishedAt = s.now() }()

	products, err := s.deps.Products.ListForImageSeeding(s.opts.PublishedOnly)
	if err != nil {
		return report, fmt.Errorf("list products: %w", err)
	}
	s.deps.Logger.Info().Int("products", len(products)).Bool("published_only", s.opts.PublishedOnly).Msg("image seeding started")

	cursor := imagepool.NewCursor(s.deps.Pools)
	pacer := s.pacer()

	for i := range products {
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				return report, err
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := s.now()
		res := s.seedProduct(ctx, cursor, &products[i])
		report.add(res)
		s.observe(res, start)
	}

	report.Products, report.ProductsWithImage, err = s.deps.Products.CountCoverage(s.opts.PublishedOnly)
	if err != nil {
		return report, fmt.Errorf("count coverage: %w", err)
	}

	s.deps.Logger.Info().
		Int("success", report.Count(StatusSuccess)).
		Int("skipped", report.Count(StatusSkipped)).
		Int("failed", report.Count(StatusFailed)).
		Int("images", report.Images()).
		Int64("products", report.Products).
		Int64("with_image", report.ProductsWithImage).
		Msg("image seeding finished")
	return report, nil
}

func (s *Seeder) seedProduct(ctx context.Context, cursor *imagepool.Cursor, p *models.Product) Result {
	category := p.Category.Name
	res := Result{ID: p.ID, Name: p.Name, Scope: category}
	log := s.deps.Logger.With().Uint("product_id", p.ID).Str("product", p.Name).Str("category", category).Logger()

	if _, err := s.deps.Images.DeleteByProduct(p.ID); err != nil {
		res.Status = StatusFailed
		res.Reason = fmt.Sprintf("clear images: %v", err)
		log.Error().Err(err).Msg("failed to clear product images")
		return res
	}

	tag := s.deps.Classifier.Classify(p.Name)
	res.Tag = string(tag)

	assignments, err := cursor.Next(tag, category)
	if err != nil {
		res.Status = StatusSkipped
		res.Reason = fmt.Sprintf("%s: %v", tag, err)
		log.Warn().Str("tag", string(tag)).Msg("no image pool, product skipped")
		return res
	}

	var failures []string
	for _, a := range assignments {
		publicID := ProductPublicID(s.opts.Root, category, tag, p.Name, p.ID, a.Slot)
		url, err := s.rehost(ctx, a.URL, publicID, s.opts.Transcode)
		if err == nil {
			err = s.deps.Images.CreateImage(&models.ProductImage{
				ProductID: p.ID,
				Image:     url,
				IsMain:    res.Images == 0,
			})
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", a.Slot, err))
			log.Error().Err(err).Str("slot", string(a.Slot)).Str("source", a.URL).Msg("image not stored")
			continue
		}
		res.Images++
	}

	res.Reason = strings.Join(failures, "; ")
	if res.Images == 0 {
		res.Status = StatusFailed
		return res
	}
	res.Status = StatusSuccess
	log.Debug().Str("tag", string(tag)).Int("images", res.Images).Msg("product seeded")
	return res
}

// rehost downloads src, transcodes it and uploads it under publicID.
func (s *Seeder) rehost(ctx context.Context, src, publicID string, opts imaging.Options) (string, error) {
	data, err := s.deps.Fetcher.Fetch(ctx, src)
	if err != nil {
		return "", err
	}
	jpg, err := imaging.Transcode(data, opts)
	if err != nil {
		return "", err
	}
	return s.deps.Media.Upload(ctx, publicID, jpg)
}

func (s *Seeder) observe(res Result, start time.Time) {
	if s.deps.Recorder == nil {
		return
	}
	tag := res.Tag
	if tag == "" {
		tag = "none"
	}
	s.deps.Recorder.ObserveSeedItem(tag, string(res.Status), res.Images, s.now().Sub(start))
}
