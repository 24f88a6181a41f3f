package seeding

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evimeria/evimeria-api/internal/classifier"
	"github.com/evimeria/evimeria-api/internal/imagepool"
	"github.com/evimeria/evimeria-api/internal/mediahost"
	"github.com/evimeria/evimeria-api/models"
)

// --- In-memory stores ---

type fakeImageStore struct {
	images    map[uint][]models.ProductImage
	nextID    uint
	deleteErr error
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{images: map[uint][]models.ProductImage{}}
}

func (f *fakeImageStore) DeleteByProduct(productID uint) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	n := int64(len(f.images[productID]))
	delete(f.images, productID)
	return n, nil
}

func (f *fakeImageStore) CreateImage(image *models.ProductImage) error {
	f.nextID++
	image.ID = f.nextID
	f.images[image.ProductID] = append(f.images[image.ProductID], *image)
	return nil
}

func (f *fakeImageStore) DeleteAll() (int64, error) {
	n := int64(0)
	for _, imgs := range f.images {
		n += int64(len(imgs))
	}
	f.images = map[uint][]models.ProductImage{}
	return n, nil
}

type fakeProductStore struct {
	products []models.Product
	images   *fakeImageStore
	listErr  error
}

func (f *fakeProductStore) ListForImageSeeding(publishedOnly bool) ([]models.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Product
	for _, p := range f.products {
		if publishedOnly && !p.IsPublished {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category.Name != out[j].Category.Name {
			return out[i].Category.Name < out[j].Category.Name
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (f *fakeProductStore) ListByCategory(categoryID uint, publishedOnly bool) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		if p.CategoryID == categoryID && (!publishedOnly || p.IsPublished) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductStore) CountCoverage(publishedOnly bool) (int64, int64, error) {
	var total, with int64
	for _, p := range f.products {
		if publishedOnly && !p.IsPublished {
			continue
		}
		total++
		if len(f.images.images[p.ID]) > 0 {
			with++
		}
	}
	return total, with, nil
}

type fakeCategoryStore struct {
	categories []models.Category
	images     map[uint]string
}

func (f *fakeCategoryStore) ListCategories() ([]models.Category, error) {
	return f.categories, nil
}

func (f *fakeCategoryStore) UpdateImage(categoryID uint, imageURL string) error {
	if f.images == nil {
		f.images = map[uint]string{}
	}
	f.images[categoryID] = imageURL
	return nil
}

// --- Remote fakes ---

type fakeFetcher struct {
	body    []byte
	failing map[string]bool
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.fetched = append(f.fetched, url)
	if f.failing[url] {
		return nil, errors.New("fetch " + url + ": status 404")
	}
	return f.body, nil
}

type fakeMedia struct {
	uploads   []string
	failing   map[string]bool
	deleted   []string
	folders   []mediahost.Folder
	resources map[string][]mediahost.Resource
}

func (f *fakeMedia) Upload(_ context.Context, publicID string, data []byte) (string, error) {
	if f.failing[publicID] {
		return "", errors.New("upload " + publicID + ": status 500")
	}
	if len(data) == 0 {
		return "", errors.New("empty upload")
	}
	f.uploads = append(f.uploads, publicID)
	return "https://res.example/" + publicID + ".jpg", nil
}

func (f *fakeMedia) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	f.deleted = append(f.deleted, prefix)
	return len(f.uploads), nil
}

func (f *fakeMedia) ListByPrefix(_ context.Context, prefix string) ([]mediahost.Resource, error) {
	return f.resources[prefix], nil
}

func (f *fakeMedia) SubFolders(_ context.Context, path string) ([]mediahost.Folder, error) {
	return f.folders, nil
}

type observation struct {
	tag    string
	status string
	images int
}

type fakeRecorder struct {
	observations []observation
}

func (f *fakeRecorder) ObserveSeedItem(tag, status string, images int, _ time.Duration) {
	f.observations = append(f.observations, observation{tag, status, images})
}

// --- Helpers ---

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newProduct(id uint, name string, category models.Category) models.Product {
	return models.Product{
		ID:          id,
		Name:        name,
		CategoryID:  category.ID,
		Category:    category,
		IsPublished: true,
		Available:   true,
	}
}

var (
	accessoires = models.Category{ID: 1, Name: "Accessoires", Slug: "accessoires"}
	hommes      = models.Category{ID: 2, Name: "Hommes", Slug: "hommes"}
	femmes      = models.Category{ID: 3, Name: "Femmes", Slug: "femmes"}
)

func testPools() *imagepool.Table {
	return imagepool.NewTable(map[classifier.Tag]map[string]imagepool.Pool{
		classifier.Casquette: {
			imagepool.ScopeAll: {Product: []string{"https://img/cap-0.jpg", "https://img/cap-1.jpg"}},
		},
		classifier.Parfum: {
			imagepool.ScopeAll: {
				Product: []string{"https://img/parfum-0.jpg"},
				Model:   []string{"https://img/parfum-model-0.jpg"},
			},
		},
	})
}

type testEnv struct {
	products   *fakeProductStore
	images     *fakeImageStore
	categories *fakeCategoryStore
	fetcher    *fakeFetcher
	media      *fakeMedia
	recorder   *fakeRecorder
	seeder     *Seeder
}

func newTestEnv(t *testing.T, products []models.Product, opts Options) *testEnv {
	t.Helper()
	images := newFakeImageStore()
	env := &testEnv{
		products:   &fakeProductStore{products: products, images: images},
		images:     images,
		categories: &fakeCategoryStore{categories: []models.Category{accessoires, hommes, femmes}},
		fetcher:    &fakeFetcher{body: pngBytes(t), failing: map[string]bool{}},
		media:      &fakeMedia{failing: map[string]bool{}, resources: map[string][]mediahost.Resource{}},
		recorder:   &fakeRecorder{},
	}
	if opts.Root == "" {
		opts.Root = "evimeria"
	}

	seeder, err := New(Deps{
		Products:   env.products,
		Images:     env.images,
		Categories: env.categories,
		Classifier: classifier.Default(classifier.DefaultFallback),
		Pools:      testPools(),
		Fetcher:    env.fetcher,
		Media:      env.media,
		Recorder:   env.recorder,
		Logger:     zerolog.Nop(),
	}, opts)
	require.NoError(t, err)
	env.seeder = seeder
	return env
}
