package seeding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evimeria/evimeria-api/internal/classifier"
	"github.com/evimeria/evimeria-api/internal/imagepool"
	"github.com/evimeria/evimeria-api/models"
)

func catalogProducts() []models.Product {
	return []models.Product{
		newProduct(20, "Parfum Élégance", hommes),
		newProduct(21, "Coffret Cadeau", hommes),
		newProduct(10, "Casquette Classique", accessoires),
		newProduct(11, "Casquette Sport", accessoires),
		newProduct(12, "Casquette Velours", accessoires),
	}
}

func TestRun(t *testing.T) {
	env := newTestEnv(t, catalogProducts(), Options{PublishedOnly: true})

	report, err := env.seeder.Run(context.Background())
	require.NoError(t, err)

	t.Run("Products are walked by category then name", func(t *testing.T) {
		var ids []uint
		for _, res := range report.Results {
			ids = append(ids, res.ID)
		}
		assert.Equal(t, []uint{10, 11, 12, 21, 20}, ids)
	})

	t.Run("Casquette pool cycles", func(t *testing.T) {
		assert.Equal(t, []string{
			"https://img/cap-0.jpg",
			"https://img/cap-1.jpg",
			"https://img/cap-0.jpg",
			"https://img/parfum-0.jpg",
			"https://img/parfum-model-0.jpg",
		}, env.fetcher.fetched)
	})

	t.Run("Uploads use deterministic public ids", func(t *testing.T) {
		assert.Equal(t, []string{
			"evimeria/products/accessoires/casquette/casquette_classique_10_product",
			"evimeria/products/accessoires/casquette/casquette_sport_11_product",
			"evimeria/products/accessoires/casquette/casquette_velours_12_product",
			"evimeria/products/hommes/parfum/parfum_elegance_20_product",
			"evimeria/products/hommes/parfum/parfum_elegance_20_model",
		}, env.media.uploads)
	})

	t.Run("First image is main", func(t *testing.T) {
		parfum := env.images.images[20]
		require.Len(t, parfum, 2)
		assert.True(t, parfum[0].IsMain)
		assert.False(t, parfum[1].IsMain)
		assert.Equal(t, "https://res.example/evimeria/products/hommes/parfum/parfum_elegance_20_product.jpg", parfum[0].Image)
	})

	t.Run("Unmatched name is skipped", func(t *testing.T) {
		res := report.Results[3]
		assert.Equal(t, StatusSkipped, res.Status)
		assert.Equal(t, string(classifier.DefaultFallback), res.Tag)
		assert.Contains(t, res.Reason, imagepool.ErrNoPool.Error())
		assert.Empty(t, env.images.images[21])
	})

	t.Run("Report totals", func(t *testing.T) {
		assert.Equal(t, 4, report.Count(StatusSuccess))
		assert.Equal(t, 1, report.Count(StatusSkipped))
		assert.Equal(t, 0, report.Count(StatusFailed))
		assert.Equal(t, 5, report.Images())
		assert.Equal(t, int64(5), report.Products)
		assert.Equal(t, int64(4), report.ProductsWithImage)
		assert.InDelta(t, 0.8, report.Coverage(), 1e-9)
		assert.False(t, report.FinishedAt.Before(report.StartedAt))
	})

	t.Run("Every product is observed", func(t *testing.T) {
		require.Len(t, env.recorder.observations, 5)
		assert.Equal(t, observation{"Casquette", "success", 1}, env.recorder.observations[0])
		assert.Equal(t, observation{"Autre", "skipped", 0}, env.recorder.observations[3])
		assert.Equal(t, observation{"Parfum", "success", 2}, env.recorder.observations[4])
	})
}

func TestRunTwiceKeepsImageCounts(t *testing.T) {
	env := newTestEnv(t, catalogProducts(), Options{})

	_, err := env.seeder.Run(context.Background())
	require.NoError(t, err)
	first := map[uint]int{}
	for id, imgs := range env.images.images {
		first[id] = len(imgs)
	}

	_, err = env.seeder.Run(context.Background())
	require.NoError(t, err)
	second := map[uint]int{}
	for id, imgs := range env.images.images {
		second[id] = len(imgs)
	}

	assert.Equal(t, first, second)
	assert.Equal(t, 2, second[20])
	assert.Equal(t, 1, second[10])
}

func TestRunSkipsUnpublishedProducts(t *testing.T) {
	products := catalogProducts()
	products[0].IsPublished = false

	env := newTestEnv(t, products, Options{PublishedOnly: true})
	report, err := env.seeder.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Results, 4)
	assert.Equal(t, int64(4), report.Products)
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	testCases := []struct {
		name           string
		setup          func(env *testEnv)
		expectedStatus Status
		expectedFailed int
	}{
		{
			name: "Fetch failure on the only image",
			setup: func(env *testEnv) {
				env.fetcher.failing["https://img/cap-0.jpg"] = true
			},
			expectedStatus: StatusFailed,
			expectedFailed: 1,
		},
		{
			name: "Upload failure",
			setup: func(env *testEnv) {
				env.media.failing["evimeria/products/accessoires/casquette/casquette_classique_10_product"] = true
			},
			expectedStatus: StatusFailed,
			expectedFailed: 1,
		},
		{
			name: "Undecodable image",
			setup: func(env *testEnv) {
				env.fetcher.body = []byte("<html>")
			},
			expectedStatus: StatusFailed,
			expectedFailed: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, catalogProducts()[2:4], Options{})
			tc.setup(env)

			report, err := env.seeder.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Results, 2)

			first := report.Results[0]
			assert.Equal(t, uint(10), first.ID)
			assert.Equal(t, tc.expectedStatus, first.Status)
			assert.NotEmpty(t, first.Reason)
			assert.Empty(t, env.images.images[10])

			assert.Len(t, env.fetcher.fetched, 2, "the next product is still processed")
			assert.Len(t, report.Failed(), tc.expectedFailed)
		})
	}
}

func TestRunPartialFailurePromotesNextImage(t *testing.T) {
	env := newTestEnv(t, []models.Product{newProduct(20, "Parfum Élégance", hommes)}, Options{})
	env.fetcher.failing["https://img/parfum-0.jpg"] = true

	report, err := env.seeder.Run(context.Background())
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Images)
	assert.Contains(t, res.Reason, "product:")

	imgs := env.images.images[20]
	require.Len(t, imgs, 1)
	assert.True(t, imgs[0].IsMain, "the model shot becomes main when the packshot failed")
	assert.Contains(t, imgs[0].Image, "_model.jpg")
}

func TestRunClearFailure(t *testing.T) {
	env := newTestEnv(t, catalogProducts()[2:3], Options{})
	env.images.deleteErr = errors.New("db down")

	report, err := env.seeder.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Reason, "clear images")
	assert.Empty(t, env.fetcher.fetched)
}

func TestRunListError(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	env.products.listErr = errors.New("db down")

	_, err := env.seeder.Run(context.Background())
	assert.ErrorContains(t, err, "list products")
}

func TestRunPaceAndCancel(t *testing.T) {
	env := newTestEnv(t, catalogProducts(), Options{Pace: time.Millisecond})

	report, err := env.seeder.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err = env.seeder.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(Deps{Logger: zerolog.Nop()}, Options{Root: "evimeria"})
	assert.Error(t, err)

	env := newTestEnv(t, nil, Options{})
	deps := env.seeder.deps
	_, err = New(deps, Options{Root: " / "})
	assert.ErrorContains(t, err, "media root")

	s, err := New(deps, Options{Root: "/evimeria/"})
	require.NoError(t, err)
	assert.Equal(t, "evimeria", s.opts.Root)
	assert.Equal(t, 1200, s.opts.BannerTranscode.MaxDimension)
}

func TestPublicIDs(t *testing.T) {
	assert.Equal(t,
		"evimeria/products/hommes/gel_douche/gel_douche_fraicheur_7_model",
		ProductPublicID("evimeria", "Hommes", classifier.GelDouche, "Gel Douche Fraîcheur", 7, imagepool.SlotModel))
	assert.Equal(t, "evimeria/categories/category_femmes", CategoryPublicID("evimeria", "Femmes"))
}
