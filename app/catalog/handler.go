package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/evimeria/evimeria-api/app/api"
	"github.com/evimeria/evimeria-api/internal/logging"
	"github.com/evimeria/evimeria-api/models"
)

const (
	defaultLimit  = 10
	maxLimit      = 100
	featuredLimit = 8
)

type Response struct {
	Total    int       `json:"total"`
	Products []Product `json:"products"`
}

type Category struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Product struct {
	ID        uint     `json:"id"`
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	Price     float64  `json:"price"`
	Stock     uint     `json:"stock"`
	Available bool     `json:"available"`
	Featured  bool     `json:"featured"`
	MainImage string   `json:"main_image,omitempty"`
	Category  Category `json:"category"`
}

type Image struct {
	ID     uint   `json:"id"`
	URL    string `json:"url"`
	IsMain bool   `json:"is_main"`
}

type ProductDetail struct {
	Product
	Description string  `json:"description"`
	Images      []Image `json:"images"`
}

type ProductProvider interface {
	GetFilteredProducts(offset, limit int, filters models.ProductFilters) ([]models.Product, int64, error)
	GetBySlug(slug string) (*models.Product, error)
	GetFeatured(limit int) ([]models.Product, error)
}

type CatalogHandler struct {
	repo ProductProvider
}

func NewCatalogHandler(r ProductProvider) *CatalogHandler {
	return &CatalogHandler{
		repo: r,
	}
}

// NewProduct maps a product to its list representation. The main image is
// the one flagged as such, or the first one.
func NewProduct(p models.Product) Product {
	out := Product{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Price:     p.Price.InexactFloat64(),
		Stock:     p.Stock,
		Available: p.Available,
		Featured:  p.Featured,
		Category: Category{
			ID:   p.Category.ID,
			Name: p.Category.Name,
			Slug: p.Category.Slug,
		},
	}
	for i, img := range p.Images {
		if img.IsMain || i == 0 {
			out.MainImage = img.Image
		}
		if img.IsMain {
			break
		}
	}
	return out
}

// NewResponse maps a page of products.
func NewResponse(res []models.Product, total int64) Response {
	products := make([]Product, len(res))
	for i, p := range res {
		products[i] = NewProduct(p)
	}
	return Response{
		Total:    int(total),
		Products: products,
	}
}

// ParseFilters reads the list filters from the query string. Invalid numbers
// and unknown sort values are ignored.
func ParseFilters(r *http.Request) models.ProductFilters {
	q := r.URL.Query()
	filters := models.ProductFilters{
		CategorySlug: q.Get("category"),
		MinPrice:     parsePrice(q.Get("min_price")),
		MaxPrice:     parsePrice(q.Get("max_price")),
		Search:       strings.TrimSpace(q.Get("search")),
	}

	switch sortBy := q.Get("sort_by"); sortBy {
	case "created_at", "price", "name":
		filters.SortBy = sortBy
	}
	switch order := strings.ToLower(q.Get("sort_order")); order {
	case "asc", "desc":
		filters.SortOrder = order
	}
	return filters
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	val, err := strconv.ParseFloat(s, 64)
	if err != nil || val < 0 {
		return nil
	}
	return &val
}

func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	offset, limit := api.Pagination(r, defaultLimit, maxLimit)
	h.list(w, offset, limit, ParseFilters(r))
}

// HandleSearch is HandleGet with a mandatory q parameter.
func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		api.Error(w, http.StatusBadRequest, "search query is required")
		return
	}

	offset, limit := api.Pagination(r, defaultLimit, maxLimit)
	filters := ParseFilters(r)
	filters.Search = query
	h.list(w, offset, limit, filters)
}

func (h *CatalogHandler) list(w http.ResponseWriter, offset, limit int, filters models.ProductFilters) {
	res, total, err := h.repo.GetFilteredProducts(offset, limit, filters)
	if err != nil {
		logging.Error().Err(err).Msg("failed to get products")
		api.Error(w, http.StatusInternalServerError, "failed to get products")
		return
	}
	api.OK(w, NewResponse(res, total))
}

func (h *CatalogHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	res, err := h.repo.GetFeatured(featuredLimit)
	if err != nil {
		logging.Error().Err(err).Msg("failed to get featured products")
		api.Error(w, http.StatusInternalServerError, "failed to get products")
		return
	}
	api.OK(w, NewResponse(res, int64(len(res))))
}

func (h *CatalogHandler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	product, err := h.repo.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			api.Error(w, http.StatusNotFound, "Product not found")
			return
		}
		logging.Error().Err(err).Str("slug", slug).Msg("failed to get product")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}

	images := make([]Image, len(product.Images))
	for i, img := range product.Images {
		images[i] = Image{
			ID:     img.ID,
			URL:    img.Image,
			IsMain: img.IsMain,
		}
	}

	api.OK(w, ProductDetail{
		Product:     NewProduct(*product),
		Description: product.Description,
		Images:      images,
	})
}
