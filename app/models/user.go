package models

import "gorm.io/gorm"

// User is a storefront account. Admins use the same table with Role=admin.
type User struct {
	gorm.Model
	Name     string `gorm:"size:255;not null" json:"name"`
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"` // hashed, never serialised
	Role     string `gorm:"size:50;default:user" json:"role"`
}

// IsAdmin reports whether the user may access the back-office surface.
func (u User) IsAdmin() bool { return u.Role == "admin" }
