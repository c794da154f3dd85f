// Package models defines GORM database models for stenograf entities.
package models

import (
	"time"
)

// BaseModel provides common fields for all models with an auto-incremented
// integer primary key. UpdatedAt drives the search index watermark, so every
// write must go through GORM (raw SQL writers need to set it explicitly).
type BaseModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// Time is an alias for time.Time used in models.
type Time = time.Time

// Float64Ptr returns a pointer to a float64 value.
func Float64Ptr(f float64) *float64 {
	return &f
}

// IntPtr returns a pointer to an int value.
func IntPtr(i int) *int {
	return &i
}

// Float64Val returns the value of a float64 pointer, defaulting to 0 if nil.
func Float64Val(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
