package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/stenograf/stenograf/internal/models"
	"gorm.io/gorm"
)

// topicRepo implements TopicRepository using GORM.
type topicRepo struct {
	db *gorm.DB
}

// NewTopicRepository creates a new TopicRepository.
func NewTopicRepository(db *gorm.DB) *topicRepo {
	return &topicRepo{db: db}
}

// GetOrCreate resolves a topic name, creating it on first sighting. The
// category is assigned by the rule table in the model's BeforeCreate hook.
func (r *topicRepo) GetOrCreate(ctx context.Context, name string) (*models.Topic, error) {
	if name == "" {
		return nil, models.ErrNameRequired
	}

	existing, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	topic := &models.Topic{Name: name}
	if err := r.db.WithContext(ctx).Create(topic).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, rerr := r.GetByName(ctx, name)
			if rerr != nil {
				return nil, rerr
			}
			if winner != nil {
				return winner, nil
			}
			return nil, fmt.Errorf("creating topic %q: %w", name, models.ErrConflictOnUniqueKey)
		}
		return nil, fmt.Errorf("creating topic: %w", err)
	}
	return topic, nil
}

// GetByName retrieves a topic by name.
func (r *topicRepo) GetByName(ctx context.Context, name string) (*models.Topic, error) {
	var topic models.Topic
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting topic: %w", err)
	}
	return &topic, nil
}

// RecomputeStats refreshes edge counts and average scores for all topics.
func (r *topicRepo) RecomputeStats(ctx context.Context) error {
	err := r.db.WithContext(ctx).Exec(`
		UPDATE topics SET
			total_segments = (SELECT COUNT(*) FROM segment_topics WHERE topic_id = topics.id),
			avg_score = (SELECT AVG(score) FROM segment_topics WHERE topic_id = topics.id)`).Error
	if err != nil {
		return fmt.Errorf("recomputing topic stats: %w", err)
	}
	return nil
}

// TopByFrequency returns the most frequently attached topic names.
func (r *topicRepo) TopByFrequency(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.Topic{}).
		Order("total_segments DESC").
		Limit(limit).
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("listing top topics: %w", err)
	}
	return names, nil
}

// Ensure topicRepo implements TopicRepository.
var _ TopicRepository = (*topicRepo)(nil)
