package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category groups ledger entries for reporting. Category names are unique
// per user.
type Category struct {
	DefaultModel
	UserID   uuid.UUID `gorm:"uniqueIndex:category_user_id_name"`
	Name     string    `gorm:"uniqueIndex:category_user_id_name"`
	Color    string
	Icon     string
	ParentID *uuid.UUID
}

// BeforeSave trims whitespace from all strings.
func (c *Category) BeforeSave(_ *gorm.DB) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Color = strings.TrimSpace(c.Color)
	c.Icon = strings.TrimSpace(c.Icon)
	return nil
}

// AfterDelete nulls the category reference on ledger entries. Rule rows
// referencing the category are removed since they can no longer assign it.
func (c *Category) AfterDelete(tx *gorm.DB) error {
	err := tx.Model(&Transaction{}).
		Where("category_id = ?", c.ID).
		Update("category_id", nil).Error
	if err != nil {
		return err
	}

	return tx.Where("category_id = ?", c.ID).Delete(&CategoryRule{}).Error
}

// CategoriesForUser returns all categories owned by the user.
func CategoriesForUser(db *gorm.DB, userID uuid.UUID) ([]Category, error) {
	var categories []Category
	err := db.Where(&Category{UserID: userID}).Order("name asc").Find(&categories).Error
	return categories, err
}

// CategoryForUser returns the category with the given ID if the user owns it.
func CategoryForUser(db *gorm.DB, userID, id uuid.UUID) (Category, error) {
	var category Category
	err := db.First(&category, "id = ? AND user_id = ?", id, userID).Error
	return category, err
}
