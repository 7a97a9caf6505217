package seeders

import (
	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/pkg/auth"
	"gorm.io/gorm"
)

func init() {
	Register("admin", SeedAdmin)
	Register("catalog", SeedCatalog)
}

// SeedAdmin creates the back-office account if it does not exist yet.
func SeedAdmin(db *gorm.DB) error {
	var count int64
	db.Model(&models.User{}).Where("role = ?", "admin").Count(&count)
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword("change-me-now")
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Name:     "Store Admin",
		Email:    "admin@mazeltote.com",
		Password: hash,
		Role:     "admin",
	}).Error
}

// SeedCatalog inserts the launch catalogue. Safe to re-run; existing slugs
// are skipped.
func SeedCatalog(db *gorm.DB) error {
	products := []models.Product{
		{
			Name:        "Classic Canvas Tote",
			Slug:        "classic-canvas-tote",
			Description: "Heavy 12oz cotton canvas tote with reinforced handles.",
			Price:       499,
			Stock:       120,
			Images:      `["https://cdn.mazeltote.com/p/classic-canvas-tote-1.jpg"]`,
			IsActive:    true,
			IsHottest:   true,
		},
		{
			Name:        "Block Print Jhola",
			Slug:        "block-print-jhola",
			Description: "Hand block-printed cotton jhola from Jaipur artisans.",
			Price:       699,
			Stock:       80,
			Images:      `["https://cdn.mazeltote.com/p/block-print-jhola-1.jpg"]`,
			IsActive:    true,
			IsHottest:   true,
		},
		{
			Name:        "Jute Market Bag",
			Slug:        "jute-market-bag",
			Description: "Natural jute weave with a flat bottom for groceries.",
			Price:       349,
			Stock:       200,
			Images:      `["https://cdn.mazeltote.com/p/jute-market-bag-1.jpg"]`,
			IsActive:    true,
		},
		{
			Name:        "Quilted Kantha Tote",
			Slug:        "quilted-kantha-tote",
			Description: "Upcycled sari layers stitched in the kantha style.",
			Price:       899,
			Stock:       45,
			Images:      `["https://cdn.mazeltote.com/p/quilted-kantha-tote-1.jpg"]`,
			IsActive:    true,
		},
		{
			Name:        "Organic Cotton Shopper",
			Slug:        "organic-cotton-shopper",
			Description: "GOTS-certified organic cotton, folds flat into a pouch.",
			Price:       549,
			Stock:       150,
			Images:      `["https://cdn.mazeltote.com/p/organic-cotton-shopper-1.jpg"]`,
			IsActive:    true,
		},
	}

	for _, p := range products {
		var count int64
		db.Model(&models.Product{}).Where("slug = ?", p.Slug).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&p).Error; err != nil {
			return err
		}
	}
	return nil
}
