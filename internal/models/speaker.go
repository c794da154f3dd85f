package models

import (
	"strings"

	"gorm.io/gorm"
)

// Speaker is a canonicalized person. Speakers are created on the first
// sighting of a name, deduplicated by normalized form, and never deleted
// while referencing segments exist.
type Speaker struct {
	BaseModel

	// Name is the display name as first seen.
	Name string `gorm:"not null;size:255" json:"name"`

	// NormalizedName is the deduplication key: lowercase, whitespace
	// collapsed to underscores. Unique across all speakers.
	NormalizedName string `gorm:"not null;size:255;uniqueIndex" json:"normalized_name"`

	Party string `gorm:"size:64" json:"party,omitempty"`
	Title string `gorm:"size:255" json:"title,omitempty"`
	Bio   string `gorm:"type:text" json:"bio,omitempty"`

	// Derived statistics, refreshed by RecomputeSpeakerStats.
	TotalSegments int      `json:"total_segments"`
	TotalWords    int      `json:"total_words"`
	AvgSentiment  *float64 `json:"avg_sentiment,omitempty"`
}

// TableName returns the table name for Speaker.
func (Speaker) TableName() string {
	return "speakers"
}

// NormalizeSpeakerName produces the canonical deduplication key for a
// speaker display name: lowercase with whitespace runs replaced by a single
// underscore.
func NormalizeSpeakerName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "_")
}

// Validate performs basic validation on the speaker.
func (s *Speaker) Validate() error {
	if s.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that derives the normalized name when unset.
func (s *Speaker) BeforeCreate(tx *gorm.DB) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.NormalizedName == "" {
		s.NormalizedName = NormalizeSpeakerName(s.Name)
	}
	return nil
}
