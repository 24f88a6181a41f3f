package categories

import (
	"errors"
	"net/http"
	"strings"

	"github.com/evimeria/evimeria-api/app/api"
	"github.com/evimeria/evimeria-api/app/catalog"
	"github.com/evimeria/evimeria-api/internal/logging"
	"github.com/evimeria/evimeria-api/internal/slug"
	"github.com/evimeria/evimeria-api/internal/validation"
	"github.com/evimeria/evimeria-api/models"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type CategoryResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Description   string `json:"description,omitempty"`
	Image         string `json:"image,omitempty"`
	ProductsCount int64  `json:"products_count"`
}

type SubCategoryResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	Description string `json:"description"`
	Image       string `json:"image" validate:"omitempty,url"`
	IsPublished bool   `json:"is_published"`
}

type CategoryProvider interface {
	GetAllCategories() ([]models.Category, error)
	GetBySlug(slug string) (*models.Category, error)
	CreateCategory(category *models.Category) error
	GetSubCategories(categoryID uint) ([]models.SubCategory, error)
}

// ProductLister is the part of the product repository the category pages use.
type ProductLister interface {
	GetFilteredProducts(offset, limit int, filters models.ProductFilters) ([]models.Product, int64, error)
}

type CategoryHandler struct {
	repo     CategoryProvider
	products ProductLister
}

func NewCategoryHandler(r CategoryProvider, products ProductLister) *CategoryHandler {
	return &CategoryHandler{repo: r, products: products}
}

func newCategoryResponse(c models.Category) CategoryResponse {
	return CategoryResponse{
		ID:            c.ID,
		Name:          c.Name,
		Slug:          c.Slug,
		Description:   c.Description,
		Image:         c.Image,
		ProductsCount: c.ProductsCount,
	}
}

func (h *CategoryHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.GetAllCategories()
	if err != nil {
		logging.Error().Err(err).Msg("failed to fetch categories")
		api.Error(w, http.StatusInternalServerError, "failed to fetch categories")
		return
	}

	response := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		response[i] = newCategoryResponse(c)
	}
	api.OK(w, response)
}

// category resolves the {slug} path value and writes the error response
// itself when it returns nil.
func (h *CategoryHandler) category(w http.ResponseWriter, r *http.Request) *models.Category {
	categorySlug := r.PathValue("slug")

	category, err := h.repo.GetBySlug(categorySlug)
	if err != nil {
		if errors.Is(err, models.ErrCategoryNotFound) {
			api.Error(w, http.StatusNotFound, "Category not found")
			return nil
		}
		logging.Error().Err(err).Str("slug", categorySlug).Msg("failed to get category")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve category")
		return nil
	}
	return category
}

func (h *CategoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	category := h.category(w, r)
	if category == nil {
		return
	}
	api.OK(w, newCategoryResponse(*category))
}

// HandleProducts lists the visible products of a category with the same
// filters and pagination as the product list.
func (h *CategoryHandler) HandleProducts(w http.ResponseWriter, r *http.Request) {
	category := h.category(w, r)
	if category == nil {
		return
	}

	offset, limit := api.Pagination(r, defaultLimit, maxLimit)
	filters := catalog.ParseFilters(r)
	filters.CategorySlug = category.Slug

	res, total, err := h.products.GetFilteredProducts(offset, limit, filters)
	if err != nil {
		logging.Error().Err(err).Str("category", category.Slug).Msg("failed to get category products")
		api.Error(w, http.StatusInternalServerError, "failed to get products")
		return
	}
	api.OK(w, catalog.NewResponse(res, total))
}

func (h *CategoryHandler) HandleSubCategories(w http.ResponseWriter, r *http.Request) {
	category := h.category(w, r)
	if category == nil {
		return
	}

	subs, err := h.repo.GetSubCategories(category.ID)
	if err != nil {
		logging.Error().Err(err).Str("category", category.Slug).Msg("failed to get subcategories")
		api.Error(w, http.StatusInternalServerError, "failed to fetch subcategories")
		return
	}

	response := make([]SubCategoryResponse, len(subs))
	for i, s := range subs {
		response[i] = SubCategoryResponse{
			ID:          s.ID,
			Name:        s.Name,
			Slug:        s.Slug,
			Description: s.Description,
		}
	}
	api.OK(w, response)
}

func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateCategoryRequest
	if err := api.DecodeJSON(r, &input); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	if err := validation.Struct(input); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	categorySlug := slug.Make(input.Slug)
	if categorySlug == "" {
		categorySlug = slug.Make(input.Name)
	}
	if categorySlug == "" {
		api.Error(w, http.StatusBadRequest, "slug could not be derived from name")
		return
	}

	category := &models.Category{
		Name:        input.Name,
		Slug:        categorySlug,
		Description: input.Description,
		Image:       input.Image,
		IsPublished: input.IsPublished,
	}

	if err := h.repo.CreateCategory(category); err != nil {
		if errors.Is(err, models.ErrDuplicateCategory) {
			api.Error(w, http.StatusConflict, "Category already exists")
			return
		}
		logging.Error().Err(err).Str("slug", categorySlug).Msg("failed to create category")
		api.Error(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	api.Created(w, newCategoryResponse(*category))
}
