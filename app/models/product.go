package models

import "gorm.io/gorm"

// Product is a catalogue entry. The slug is the public identity used in
// storefront URLs and is immutable after creation; price and stock are live
// values — orders snapshot them at checkout so later edits never change
// historical orders.
type Product struct {
	gorm.Model
	Name        string  `gorm:"size:255;not null;index"       json:"name"`
	Slug        string  `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	Description string  `gorm:"type:text"                     json:"description"`
	Price       float64 `gorm:"not null;default:0"            json:"price"`
	Stock       int     `gorm:"not null;default:0"            json:"stock"`
	Images      string  `gorm:"type:text"                     json:"images"` // JSON array of URLs
	IsActive    bool    `gorm:"not null;default:true"         json:"is_active"`
	IsHottest   bool    `gorm:"not null;default:false"        json:"is_hottest"`
}

// InStock reports whether at least qty units are available.
func (p Product) InStock(qty int) bool { return p.Stock >= qty }
