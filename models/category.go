package models

import "time"

// Category represents a top level section of the catalog (Hommes, Femmes, Enfants...).
// Only published categories are exposed through the API.
type Category struct {
	ID            uint          `gorm:"primaryKey"`
	Name          string        `gorm:"size:100;not null"`
	Slug          string        `gorm:"size:100;uniqueIndex;not null"`
	Description   string        `gorm:"type:text"`
	Image         string        `gorm:"size:1000"`
	IsPublished   bool          `gorm:"not null;default:false"`
	SubCategories []SubCategory `gorm:"foreignKey:CategoryID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// ProductsCount is filled by listing queries only.
	ProductsCount int64 `gorm:"->;-:migration"`
}

func (c *Category) TableName() string {
	return "categories"
}

// SubCategory groups products inside a category. Its slug is unique per category.
type SubCategory struct {
	ID          uint   `gorm:"primaryKey"`
	CategoryID  uint   `gorm:"not null;uniqueIndex:idx_subcategory_slug"`
	Name        string `gorm:"size:100;not null"`
	Slug        string `gorm:"size:100;not null;uniqueIndex:idx_subcategory_slug"`
	Description string `gorm:"type:text"`
	IsPublished bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *SubCategory) TableName() string {
	return "subcategories"
}
