package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog.
// It belongs to a category, optionally to a subcategory, and owns its images.
type Product struct {
	ID            uint            `gorm:"primaryKey"`
	CategoryID    uint            `gorm:"not null;index"`
	Category      Category        `gorm:"foreignKey:CategoryID"`
	SubCategoryID *uint           `gorm:"index"`
	SubCategory   *SubCategory    `gorm:"foreignKey:SubCategoryID"`
	Name          string          `gorm:"size:200;not null"`
	Slug          string          `gorm:"size:200;uniqueIndex;not null"`
	Description   string          `gorm:"type:text"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock         uint            `gorm:"not null;default:0"`
	Available     bool            `gorm:"not null;default:true"`
	Featured      bool            `gorm:"not null;default:false"`
	IsPublished   bool            `gorm:"not null;default:false"`
	Images        []ProductImage  `gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Product) TableName() string {
	return "products"
}

// ProductImage is one hosted picture of a product. A product has at most one
// main image; the rest are secondary.
type ProductImage struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID uint   `gorm:"not null;index"`
	Image     string `gorm:"size:500;not null"`
	IsMain    bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (i *ProductImage) TableName() string {
	return "product_images"
}
