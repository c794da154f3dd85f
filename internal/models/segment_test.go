package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCounts(t *testing.T) {
	s := &TranscriptSegment{TranscriptText: "This is a test."}
	s.ComputeCounts()
	assert.Equal(t, 4, s.WordCount)
	assert.Equal(t, 15, s.CharCount)

	s = &TranscriptSegment{TranscriptText: "  spaced   out  words "}
	s.ComputeCounts()
	assert.Equal(t, 3, s.WordCount)
}

func TestApplyModerationFlags(t *testing.T) {
	s := &TranscriptSegment{
		ModerationHate:     Float64Ptr(0.45),
		ModerationViolence: Float64Ptr(0.29),
		ModerationSexual:   Float64Ptr(0.3),
	}
	s.ApplyModerationFlags()

	assert.True(t, s.ModerationHateFlag)
	assert.False(t, s.ModerationViolenceFlag)
	assert.True(t, s.ModerationSexualFlag, "flag threshold is inclusive")
	assert.False(t, s.ModerationHarassmentFlag, "nil score yields false flag")
	assert.NotNil(t, s.ModerationOverallScore)
	assert.InDelta(t, 0.45, *s.ModerationOverallScore, 1e-9)
}

func TestApplyModerationFlags_AllNil(t *testing.T) {
	s := &TranscriptSegment{}
	s.ApplyModerationFlags()
	assert.Nil(t, s.ModerationOverallScore)
	assert.False(t, s.ModerationHateFlag)
}

func TestStresslensRankFor(t *testing.T) {
	tests := []struct {
		score float64
		rank  int
	}{
		{0.95, 1},
		{0.7, 1},
		{0.5, 2},
		{0.4, 2},
		{0.25, 3},
		{0.2, 3},
		{0.1, 4},
		{0, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.rank, StresslensRankFor(tt.score), "score %v", tt.score)
	}
}

func TestNormalizeSpeakerName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Speaker A", "speaker_a"},
		{"Van der Lee", "van_der_lee"},
		{"  Aukje   de Vries ", "aukje_de_vries"},
		{"ONBEKEND", "onbekend"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSpeakerName(tt.in))
	}
}

func TestCategorizeTopic(t *testing.T) {
	assert.Equal(t, "Economy", CategorizeTopic("Tax Policy"))
	assert.Equal(t, "Immigration", CategorizeTopic("border security"))
	assert.Equal(t, "Climate & Energy", CategorizeTopic("Stikstofbeleid"))
	assert.Equal(t, "General", CategorizeTopic("Miscellaneous"))
}

func TestSegmentValidate(t *testing.T) {
	s := &TranscriptSegment{VideoID: 1, SegmentID: "seg_1", SegmentType: SegmentTypeSpoken}
	assert.NoError(t, s.Validate())

	s = &TranscriptSegment{SegmentID: "seg_1", SegmentType: SegmentTypeSpoken}
	assert.ErrorIs(t, s.Validate(), ErrVideoIDRequired)

	s = &TranscriptSegment{VideoID: 1, SegmentType: SegmentTypeSpoken}
	assert.ErrorIs(t, s.Validate(), ErrSegmentIDRequired)

	s = &TranscriptSegment{VideoID: 1, SegmentID: "x", SegmentType: "shouted"}
	assert.ErrorIs(t, s.Validate(), ErrInvalidSegmentType)
}

func TestVideoValidate(t *testing.T) {
	v := &Video{Filename: "a.html", Dataset: DatasetTrump, SourceType: SourceTypeHTML}
	assert.NoError(t, v.Validate())

	v = &Video{Dataset: DatasetTrump, SourceType: SourceTypeHTML}
	assert.ErrorIs(t, v.Validate(), ErrFilenameRequired)

	v = &Video{Filename: "a.html", Dataset: "other", SourceType: SourceTypeHTML}
	assert.ErrorIs(t, v.Validate(), ErrInvalidDataset)

	v = &Video{Filename: "a.html", Dataset: DatasetTrump, SourceType: "pdf"}
	assert.ErrorIs(t, v.Validate(), ErrInvalidSourceType)
}
