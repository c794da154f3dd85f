package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rallyPage = `<!DOCTYPE html>
<html>
<head>
  <title>Donald Trump Rally in Miami</title>
  <meta property="og:image" content="https://i.vimeocdn.com/video/12345.jpg">
</head>
<body>
  <iframe src="https://player.vimeo.com/video/987654321"></iframe>
  <div class="mb-4 border-b mx-6 my-4">
    <a href="#" data-seconds="10">Play</a>
    <span>00:00:10 - 00:00:12 (2 sec)</span>
    <h2>Speaker A</h2>
    <div class="transcript-text">This is a test.</div>
    <div class="segment-details">
      Loughran-McDonald: 0.25 (Positive)
      Harvard IV: -0.1 (Negative)
      VADER: 0.6 (Positive)
      Harassment: 0.05
      Hate: 0.4
      Violence: 0.02
      Sexual: 0.0
      Self-harm: 0.01
      Flesch-Kincaid Grade: 2.9
      Flesch Reading Ease: 95.2
      Gunning Fog: 3.2
      Coleman-Liau: 1.1
      SMOG: 3.0
      ARI: 0.5
      Stress Score: 0.82
      Primary Topic: Elections (0.91)
    </div>
  </div>
</body>
</html>`

func TestParseHTMLRally(t *testing.T) {
	result, err := ParseHTML("donald-trump-political-rally-miami-8-13-2025.html", strings.NewReader(rallyPage))
	require.NoError(t, err)

	meta := result.Metadata
	assert.Equal(t, "donald-trump-political-rally-miami-8-13-2025.html", meta.Filename)
	assert.Equal(t, "Donald Trump", meta.Candidate)
	assert.Equal(t, "Political Rally", meta.Format)
	assert.Equal(t, "Miami", meta.Place)
	require.NotNil(t, meta.Date)
	assert.Equal(t, time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC), *meta.Date)
	assert.Equal(t, "987654321", meta.VimeoID)
	assert.Equal(t, "https://vimeo.com/987654321", meta.URL)
	assert.Equal(t, "https://i.vimeocdn.com/video/12345.jpg", meta.ThumbnailURL)
	assert.Equal(t, "Donald Trump Rally in Miami", meta.Title)

	require.Len(t, result.Segments, 1)
	require.Empty(t, result.Warnings)
	seg := result.Segments[0]
	assert.Equal(t, "Speaker A", seg.SpeakerName)
	assert.Equal(t, "This is a test.", seg.Text)
	require.NotNil(t, seg.VideoSeconds)
	assert.Equal(t, 10, *seg.VideoSeconds)
	assert.Equal(t, "00:00:10", seg.TimestampStart)
	assert.Equal(t, "00:00:12", seg.TimestampEnd)
	assert.Equal(t, 2.0, seg.DurationSeconds)

	row := seg.ToModel()
	assert.Equal(t, 4, row.WordCount)
	assert.Equal(t, 15, row.CharCount)
}

func TestParseHTMLAnalytics(t *testing.T) {
	result, err := ParseHTML("donald-trump-political-rally-miami-8-13-2025.html", strings.NewReader(rallyPage))
	require.NoError(t, err)
	require.Len(t, result.Segments, 1)
	seg := result.Segments[0]

	require.NotNil(t, seg.SentimentLoughranScore)
	assert.InDelta(t, 0.25, *seg.SentimentLoughranScore, 0.0001)
	assert.Equal(t, "Positive", seg.SentimentLoughranLabel)
	require.NotNil(t, seg.SentimentHarvardScore)
	assert.InDelta(t, -0.1, *seg.SentimentHarvardScore, 0.0001)
	assert.Equal(t, "Negative", seg.SentimentHarvardLabel)
	require.NotNil(t, seg.SentimentVaderScore)
	assert.InDelta(t, 0.6, *seg.SentimentVaderScore, 0.0001)

	require.NotNil(t, seg.ModerationHate)
	assert.InDelta(t, 0.4, *seg.ModerationHate, 0.0001)
	require.NotNil(t, seg.ModerationHarassment)
	assert.InDelta(t, 0.05, *seg.ModerationHarassment, 0.0001)

	require.NotNil(t, seg.FleschKincaidGrade)
	assert.InDelta(t, 2.9, *seg.FleschKincaidGrade, 0.0001)
	require.NotNil(t, seg.FleschReadingEase)
	assert.InDelta(t, 95.2, *seg.FleschReadingEase, 0.0001)
	require.NotNil(t, seg.SMOG)
	assert.InDelta(t, 3.0, *seg.SMOG, 0.0001)
	require.NotNil(t, seg.ARI)
	assert.InDelta(t, 0.5, *seg.ARI, 0.0001)

	require.NotNil(t, seg.StresslensScore)
	assert.InDelta(t, 0.82, *seg.StresslensScore, 0.0001)
	require.NotNil(t, seg.StresslensRank)
	assert.Equal(t, 1, *seg.StresslensRank)

	assert.Equal(t, "Elections", seg.PrimaryTopic)
	require.NotNil(t, seg.PrimaryTopicScore)
	assert.InDelta(t, 0.91, *seg.PrimaryTopicScore, 0.0001)

	// Flags derive from scores at the 0.3 threshold.
	row := seg.ToModel()
	assert.True(t, row.ModerationHateFlag)
	assert.False(t, row.ModerationHarassmentFlag)
	require.NotNil(t, row.ModerationOverallScore)
	assert.InDelta(t, 0.4, *row.ModerationOverallScore, 0.0001)
}

func TestParseHTMLSkipsMalformedSegments(t *testing.T) {
	page := `<html><body>
	  <div class="mb-4 border-b mx-6 my-4">
	    <h2>Speaker B</h2>
	    <div class="transcript-text">Good segment.</div>
	  </div>
	  <div class="mb-4 border-b mx-6 my-4">
	    <div class="transcript-text">No speaker heading here.</div>
	  </div>
	  <div class="mb-4 border-b mx-6 my-4">
	    <h2>Speaker C</h2>
	  </div>
	</body></html>`

	result, err := ParseHTML("some-speech.html", strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, "Speaker B", result.Segments[0].SpeakerName)

	require.Len(t, result.Warnings, 2)
	assert.Equal(t, 1, result.Warnings[0].Index)
	assert.Equal(t, "missing speaker heading", result.Warnings[0].Reason)
	assert.Equal(t, 2, result.Warnings[1].Index)
	assert.Equal(t, "missing transcript text", result.Warnings[1].Reason)
}

func TestParseHTMLDateFallbackToMeta(t *testing.T) {
	page := `<html><head>
	  <meta property="article:modified_time" content="2024-11-05T18:30:00Z">
	</head><body></body></html>`

	result, err := ParseHTML("untitled-event.html", strings.NewReader(page))
	require.NoError(t, err)
	require.NotNil(t, result.Metadata.Date)
	assert.Equal(t, 2024, result.Metadata.Date.Year())
	assert.Equal(t, time.November, result.Metadata.Date.Month())
}

func TestParseHTMLDeterministic(t *testing.T) {
	first, err := ParseHTML("donald-trump-political-rally-miami-8-13-2025.html", strings.NewReader(rallyPage))
	require.NoError(t, err)
	second, err := ParseHTML("donald-trump-political-rally-miami-8-13-2025.html", strings.NewReader(rallyPage))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseHTMLStressOutOfRangeIgnored(t *testing.T) {
	page := `<html><body>
	  <div class="mb-4 border-b mx-6 my-4">
	    <h2>Speaker D</h2>
	    <div class="transcript-text">Some words.</div>
	    <div class="segment-details">Stress Score: 42</div>
	  </div>
	</body></html>`

	result, err := ParseHTML("x.html", strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, result.Segments, 1)
	assert.Nil(t, result.Segments[0].StresslensScore)
	assert.Nil(t, result.Segments[0].StresslensRank)
}

func TestDateFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"donald-trump-speech-august-13-2025", "2025-08-13"},
		{"donald-trump-speech-8-13-2025", "2025-08-13"},
		{"session-2025-08-13-report", "2025-08-13"},
		{"no-date-here", ""},
	}
	for _, tt := range tests {
		got := dateFromFilename(tt.name)
		if tt.want == "" {
			assert.Nil(t, got, tt.name)
			continue
		}
		require.NotNil(t, got, tt.name)
		assert.Equal(t, tt.want, got.Format("2006-01-02"), tt.name)
	}
}
