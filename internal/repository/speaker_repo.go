package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/stenograf/stenograf/internal/models"
	"gorm.io/gorm"
)

// speakerRepo implements SpeakerRepository using GORM.
type speakerRepo struct {
	db *gorm.DB
}

// NewSpeakerRepository creates a new SpeakerRepository.
func NewSpeakerRepository(db *gorm.DB) *speakerRepo {
	return &speakerRepo{db: db}
}

// GetOrCreate resolves a display name to the canonical speaker row. When two
// ingest workers race on the same new name, the loser's insert hits the
// unique index and the existing row is re-read.
func (r *speakerRepo) GetOrCreate(ctx context.Context, name string) (*models.Speaker, error) {
	normalized := models.NormalizeSpeakerName(name)
	if normalized == "" {
		return nil, models.ErrNameRequired
	}

	existing, err := r.GetByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	speaker := &models.Speaker{Name: name, NormalizedName: normalized}
	if err := r.db.WithContext(ctx).Create(speaker).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another worker won the race.
			winner, rerr := r.GetByNormalizedName(ctx, normalized)
			if rerr != nil {
				return nil, rerr
			}
			if winner != nil {
				return winner, nil
			}
			return nil, fmt.Errorf("creating speaker %q: %w", name, models.ErrConflictOnUniqueKey)
		}
		return nil, fmt.Errorf("creating speaker: %w", err)
	}
	return speaker, nil
}

// GetByNormalizedName retrieves a speaker by identity key.
func (r *speakerRepo) GetByNormalizedName(ctx context.Context, normalized string) (*models.Speaker, error) {
	var speaker models.Speaker
	if err := r.db.WithContext(ctx).Where("normalized_name = ?", normalized).First(&speaker).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting speaker: %w", err)
	}
	return &speaker, nil
}

// RecomputeStats refreshes derived statistics for all speakers in one
// statement per metric. Scheduled once per ingest job, not per file.
func (r *speakerRepo) RecomputeStats(ctx context.Context) error {
	err := r.db.WithContext(ctx).Exec(`
		UPDATE speakers SET
			total_segments = COALESCE(agg.segs, 0),
			total_words = COALESCE(agg.words, 0),
			avg_sentiment = agg.sentiment
		FROM (
			SELECT speaker_id,
			       COUNT(*) AS segs,
			       SUM(word_count) AS words,
			       AVG(sentiment_vader_score) AS sentiment
			FROM transcript_segments
			WHERE speaker_id IS NOT NULL
			GROUP BY speaker_id
		) AS agg
		WHERE speakers.id = agg.speaker_id`).Error
	if err == nil {
		return nil
	}

	// SQLite has no UPDATE ... FROM with this shape; fall back to per-row
	// correlated subqueries.
	fallback := r.db.WithContext(ctx).Exec(`
		UPDATE speakers SET
			total_segments = (SELECT COUNT(*) FROM transcript_segments WHERE speaker_id = speakers.id),
			total_words = (SELECT COALESCE(SUM(word_count),0) FROM transcript_segments WHERE speaker_id = speakers.id),
			avg_sentiment = (SELECT AVG(sentiment_vader_score) FROM transcript_segments WHERE speaker_id = speakers.id)`).Error
	if fallback != nil {
		return fmt.Errorf("recomputing speaker stats: %w", err)
	}
	return nil
}

// TopByFrequency returns the most frequently speaking names.
func (r *speakerRepo) TopByFrequency(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.Speaker{}).
		Where("name <> ''").
		Order("total_segments DESC").
		Limit(limit).
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("listing top speakers: %w", err)
	}
	return names, nil
}

// Ensure speakerRepo implements SpeakerRepository.
var _ SpeakerRepository = (*speakerRepo)(nil)
