package models

import (
	"gorm.io/gorm"
)

type ProductImagesRepository struct {
	db *gorm.DB
}

func NewProductImagesRepository(db *gorm.DB) *ProductImagesRepository {
	return &ProductImagesRepository{db: db}
}

// DeleteByProduct removes every image record of a product and reports how many went away.
func (r *ProductImagesRepository) DeleteByProduct(productID uint) (int64, error) {
	res := r.db.Where("product_id = ?", productID).Delete(&ProductImage{})
	return res.RowsAffected, res.Error
}

func (r *ProductImagesRepository) CreateImage(image *ProductImage) error {
	return r.db.Create(image).Error
}

// DeleteAll wipes the image table. Used before a full rebuild.
func (r *ProductImagesRepository) DeleteAll() (int64, error) {
	res := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ProductImage{})
	return res.RowsAffected, res.Error
}
