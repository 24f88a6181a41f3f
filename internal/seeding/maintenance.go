package seeding

import (
	"context"
	"fmt"
	"strings"

	"github.com/evimeria/evimeria-api/internal/slug"
	"github.com/evimeria/evimeria-api/models"
)

// DefaultBanners are the category banner sources used when none are configured.
func DefaultBanners() map[string]string {
	return map[string]string{
		"enfants": "https://images.unsplash.com/photo-1503919005314-30d93d07d823?auto=format&fit=crop&w=1200&q=80",
		"femmes":  "https://images.unsplash.com/photo-1581044777550-4cfa60707c03?auto=format&fit=crop&w=1200&q=80",
		"hommes":  "https://images.unsplash.com/photo-1620012253295-c15cc3e65df4?auto=format&fit=crop&w=1200&q=80",
	}
}

// CleanResult counts what Clean removed.
type CleanResult struct {
	Records   int64
	Resources int
}

// Clean deletes every product image record and every media host resource
// under the root folder.
func (s *Seeder) Clean(ctx context.Context) (CleanResult, error) {
	var out CleanResult

	records, err := s.deps.Images.DeleteAll()
	if err != nil {
		return out, fmt.Errorf("delete image records: %w", err)
	}
	out.Records = records

	resources, err := s.deps.Media.DeleteByPrefix(ctx, s.opts.Root+"/")
	if err != nil {
		return out, fmt.Errorf("delete hosted images: %w", err)
	}
	out.Resources = resources

	s.deps.Logger.Info().Int64("records", out.Records).Int("resources", out.Resources).Msg("images cleaned")
	return out, nil
}

// AssignCategoryBanners uploads one banner per category, keyed by slug, and
// stores its URL on the category. Categories without a configured banner
// are skipped.
func (s *Seeder) AssignCategoryBanners(ctx context.Context) (*Report, error) {
	report := newReport("categories", s.now())
	defer func() { report.FinishedAt = s.now() }()

	banners := s.opts.Banners
	if len(banners) == 0 {
		banners = DefaultBanners()
	}

	categories, err := s.deps.Categories.ListCategories()
	if err != nil {
		return report, fmt.Errorf("list categories: %w", err)
	}

	for _, c := range categories {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key := strings.ToLower(c.Slug)
		res := Result{ID: c.ID, Name: c.Name, Scope: key}
		log := s.deps.Logger.With().Uint("category_id", c.ID).Str("category", c.Name).Logger()

		src, ok := banners[key]
		if !ok {
			res.Status = StatusSkipped
			res.Reason = "no banner configured"
			log.Warn().Msg("no banner configured, category skipped")
			report.add(res)
			continue
		}

		url, err := s.rehost(ctx, src, CategoryPublicID(s.opts.Root, key), s.opts.BannerTranscode)
		if err == nil {
			err = s.deps.Categories.UpdateImage(c.ID, url)
		}
		if err != nil {
			res.Status = StatusFailed
			res.Reason = err.Error()
			log.Error().Err(err).Msg("banner not stored")
			report.add(res)
			continue
		}

		res.Status = StatusSuccess
		res.Images = 1
		log.Info().Str("image", url).Msg("banner assigned")
		report.add(res)
	}
	return report, nil
}

// SyncFromMediaHost rebuilds product images from what is already hosted:
// each folder under <root>/products is matched to the category whose name
// segment it carries, and its resources are given, in order, as main image to the
// category's products. Products left over once the folder runs out of
// images are skipped.
func (s *Seeder) SyncFromMediaHost(ctx context.Context) (*Report, error) {
	report := newReport("sync", s.now())
	defer func() { report.FinishedAt = s.now() }()

	folders, err := s.deps.Media.SubFolders(ctx, s.opts.Root+"/products")
	if err != nil {
		return report, fmt.Errorf("list folders: %w", err)
	}

	categories, err := s.deps.Categories.ListCategories()
	if err != nil {
		return report, fmt.Errorf("list categories: %w", err)
	}
	bySegment := make(map[string]models.Category, len(categories))
	for _, c := range categories {
		bySegment[slug.Segment(c.Name)] = c
	}

	for _, folder := range folders {
		log := s.deps.Logger.With().Str("folder", folder.Path).Logger()

		category, ok := bySegment[slug.Segment(folder.Name)]
		if !ok {
			log.Warn().Err(models.ErrCategoryNotFound).Msg("no category for folder")
			continue
		}

		resources, err := s.deps.Media.ListByPrefix(ctx, folder.Path+"/")
		if err != nil {
			log.Error().Err(err).Msg("failed to list folder")
			continue
		}

		products, err := s.deps.Products.ListByCategory(category.ID, s.opts.PublishedOnly)
		if err != nil {
			return report, fmt.Errorf("list products of %s: %w", category.Name, err)
		}

		for i, p := range products {
			res := Result{ID: p.ID, Name: p.Name, Scope: category.Name}
			if i >= len(resources) {
				res.Status = StatusSkipped
				res.Reason = "no hosted image left"
				report.add(res)
				continue
			}

			if _, err := s.deps.Images.DeleteByProduct(p.ID); err != nil {
				res.Status = StatusFailed
				res.Reason = fmt.Sprintf("clear images: %v", err)
				report.add(res)
				continue
			}
			if err := s.deps.Images.CreateImage(&models.ProductImage{
				ProductID: p.ID,
				Image:     resources[i].SecureURL,
				IsMain:    true,
			}); err != nil {
				res.Status = StatusFailed
				res.Reason = err.Error()
				report.add(res)
				continue
			}
			res.Status = StatusSuccess
			res.Images = 1
			report.add(res)
		}
		log.Info().Int("resources", len(resources)).Int("products", len(products)).Msg("folder synced")
	}
	return report, nil
}
