package models

import (
	"strings"

	"gorm.io/gorm"
)

// Topic is a classification label attached to segments with a weighted edge.
type Topic struct {
	BaseModel

	// Name is the unique topic label.
	Name string `gorm:"not null;size:255;uniqueIndex" json:"name"`

	Code        string `gorm:"size:64" json:"code,omitempty"`
	Category    string `gorm:"size:128;index" json:"category,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Derived statistics, refreshed by RecomputeTopicStats.
	TotalSegments int      `json:"total_segments"`
	AvgScore      *float64 `json:"avg_score,omitempty"`
}

// TableName returns the table name for Topic.
func (Topic) TableName() string {
	return "topics"
}

// topicCategoryRules maps keyword fragments to a category. Rules are applied
// in order on first creation of a topic; the first match wins.
var topicCategoryRules = []struct {
	keywords []string
	category string
}{
	{[]string{"econom", "tax", "inflation", "budget", "trade", "jobs"}, "Economy"},
	{[]string{"immigra", "border", "asylum", "refugee"}, "Immigration"},
	{[]string{"health", "zorg", "medicare", "vaccine"}, "Healthcare"},
	{[]string{"climate", "energy", "klimaat", "stikstof", "environment"}, "Climate & Energy"},
	{[]string{"defense", "military", "war", "nato", "ukraine", "defensie"}, "Defense & Security"},
	{[]string{"education", "school", "onderwijs", "university"}, "Education"},
	{[]string{"housing", "woning", "rent"}, "Housing"},
	{[]string{"crime", "police", "justice", "justitie"}, "Justice & Crime"},
	{[]string{"election", "campaign", "vote", "verkiezing"}, "Elections"},
	{[]string{"foreign", "buitenland", "diploma"}, "Foreign Affairs"},
}

// CategorizeTopic assigns a category for a topic name using the rule table.
// Unmatched names fall into "General".
func CategorizeTopic(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range topicCategoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return "General"
}

// Validate performs basic validation on the topic.
func (t *Topic) Validate() error {
	if t.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// BeforeCreate is a GORM hook that assigns the category when unset.
func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Category == "" {
		t.Category = CategorizeTopic(t.Name)
	}
	return nil
}
