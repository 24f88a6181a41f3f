package models

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrCategoryNotFound is returned when a category is not found.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrDuplicateCategory is returned when the slug is already taken.
	ErrDuplicateCategory = errors.New("category already exists")
)

type CategoriesRepository struct {
	db *gorm.DB
}

func NewCategoriesRepository(db *gorm.DB) *CategoriesRepository {
	return &CategoriesRepository{db: db}
}

const publishedProductsCount = "(SELECT COUNT(*) FROM products WHERE products.category_id = categories.id AND products.is_published = true) AS products_count"

// GetAllCategories lists published categories with their published product count.
func (r *CategoriesRepository) GetAllCategories() ([]Category, error) {
	var categories []Category
	if err := r.db.Model(&Category{}).
		Select("categories.*, " + publishedProductsCount).
		Where("categories.is_published = ?", true).
		Order("categories.name ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoriesRepository) GetBySlug(slug string) (*Category, error) {
	var category Category
	if err := r.db.Model(&Category{}).
		Select("categories.*, "+publishedProductsCount).
		Where("categories.slug = ? AND categories.is_published = ?", slug, true).
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *CategoriesRepository) CreateCategory(category *Category) error {
	if err := r.db.Create(category).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCategory
		}
		return err
	}
	return nil
}

func (r *CategoriesRepository) GetSubCategories(categoryID uint) ([]SubCategory, error) {
	var subs []SubCategory
	if err := r.db.
		Where("category_id = ? AND is_published = ?", categoryID, true).
		Order("name ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// ListCategories returns every category, published or not.
func (r *CategoriesRepository) ListCategories() ([]Category, error) {
	var categories []Category
	if err := r.db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoriesRepository) UpdateImage(categoryID uint, imageURL string) error {
	res := r.db.Model(&Category{}).Where("id = ?", categoryID).Update("image", imageURL)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
