package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductsRepository struct {
	db *gorm.DB
}

// ErrProductNotFound is returned when a product is not found.
var ErrProductNotFound = errors.New("product not found")

type ProductFilters struct {
	CategorySlug string
	MinPrice     *float64
	MaxPrice     *float64
	Search       string
	SortBy       string
	SortOrder    string
}

// sortColumns whitelists the columns accepted by sort_by.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"name":       "name",
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{
		db: db,
	}
}

// visible restricts a query to products a customer may see.
func (r *ProductsRepository) visible() *gorm.DB {
	return r.db.Model(&Product{}).
		Joins("LEFT JOIN categories ON categories.id = products.category_id").
		Where("products.available = ? AND products.is_published = ?", true, true)
}

func (r *ProductsRepository) GetFilteredProducts(offset, limit int, filters ProductFilters) ([]Product, int64, error) {
	var products []Product
	var total int64

	query := r.visible().
		Preload("Category").
		Preload("Images")

	if filters.CategorySlug != "" {
		query = query.Where("categories.slug = ? AND categories.is_published = ?", filters.CategorySlug, true)
	}
	if filters.MinPrice != nil {
		query = query.Where("products.price >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		query = query.Where("products.price <= ?", *filters.MaxPrice)
	}
	if filters.Search != "" {
		like := "%" + likeEscaper.Replace(filters.Search) + "%"
		query = query.Where(`(products.name ILIKE ? ESCAPE '\' OR products.description ILIKE ? ESCAPE '\')`, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[filters.SortBy]
	if !ok {
		column = "created_at"
	}
	query = query.Order(clause.OrderByColumn{
		Column: clause.Column{Table: "products", Name: column},
		Desc:   filters.SortOrder != "asc",
	})

	if err := query.Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *ProductsRepository) GetBySlug(slug string) (*Product, error) {
	var product Product
	if err := r.visible().
		Preload("Images").
		Preload("Category").
		Where("products.slug = ?", slug).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductsRepository) GetFeatured(limit int) ([]Product, error) {
	var products []Product
	if err := r.visible().
		Preload("Category").
		Preload("Images").
		Where("products.featured = ?", true).
		Order("products.created_at DESC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ListForImageSeeding returns products grouped by category name then product name,
// which is the order the image seeding batch walks them in.
func (r *ProductsRepository) ListForImageSeeding(publishedOnly bool) ([]Product, error) {
	var products []Product
	query := r.db.Model(&Product{}).
		Joins("JOIN categories ON categories.id = products.category_id").
		Preload("Category")
	if publishedOnly {
		query = query.Where("products.is_published = ? AND categories.is_published = ?", true, true)
	}
	if err := query.
		Order("categories.name ASC").
		Order("products.name ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductsRepository) ListByCategory(categoryID uint, publishedOnly bool) ([]Product, error) {
	var products []Product
	query := r.db.Where("category_id = ?", categoryID)
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// CountCoverage returns how many products exist and how many have at least one image.
func (r *ProductsRepository) CountCoverage(publishedOnly bool) (total int64, withImages int64, err error) {
	base := r.db.Model(&Product{})
	if publishedOnly {
		base = base.Where("products.is_published = ?", true)
	}
	if err = base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = base.Session(&gorm.Session{}).
		Where("EXISTS (SELECT 1 FROM product_images WHERE product_images.product_id = products.id)").
		Count(&withImages).Error
	if err != nil {
		return 0, 0, err
	}
	return total, withImages, nil
}
