package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stenograf/stenograf/internal/models"
)

// segmentSelector matches one transcript segment block on the page.
const segmentSelector = "div.mb-4.border-b.mx-6.my-4"

var (
	timeRangeRe = regexp.MustCompile(`(\d{2}:\d{2}:\d{2})\s*[-–]\s*(\d{2}:\d{2}:\d{2})\s*\((\d+(?:\.\d+)?)\s*sec`)
	vimeoIDRe   = regexp.MustCompile(`player\.vimeo\.com/video/(\d+)`)
	youtubeIDRe = regexp.MustCompile(`youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]{6,})`)

	// Analytics extraction tolerates formatting variance: every value is
	// found by unanchored search within the segment's details block.
	loughranRe = regexp.MustCompile(`(?i)loughran(?:[ -]?mcdonald)?[^-\d(]*(-?\d+(?:\.\d+)?)(?:\s*\(([A-Za-z]+)\))?`)
	harvardRe  = regexp.MustCompile(`(?i)harvard[^-\d(]*(-?\d+(?:\.\d+)?)(?:\s*\(([A-Za-z]+)\))?`)
	vaderRe    = regexp.MustCompile(`(?i)vader[^-\d(]*(-?\d+(?:\.\d+)?)(?:\s*\(([A-Za-z]+)\))?`)

	harassmentRe = regexp.MustCompile(`(?i)harassment[^\d]*(\d+(?:\.\d+)?)`)
	hateRe       = regexp.MustCompile(`(?i)hate[^\d]*(\d+(?:\.\d+)?)`)
	violenceRe   = regexp.MustCompile(`(?i)violence[^\d]*(\d+(?:\.\d+)?)`)
	sexualRe     = regexp.MustCompile(`(?i)sexual[^\d]*(\d+(?:\.\d+)?)`)
	selfHarmRe   = regexp.MustCompile(`(?i)self[ -]?harm[^\d]*(\d+(?:\.\d+)?)`)

	fleschKincaidRe = regexp.MustCompile(`(?i)flesch[ -]?kincaid[^-\d]*(-?\d+(?:\.\d+)?)`)
	readingEaseRe   = regexp.MustCompile(`(?i)reading\s*ease[^-\d]*(-?\d+(?:\.\d+)?)`)
	gunningFogRe    = regexp.MustCompile(`(?i)gunning\s*fog[^-\d]*(-?\d+(?:\.\d+)?)`)
	colemanLiauRe   = regexp.MustCompile(`(?i)coleman[ -]?liau[^-\d]*(-?\d+(?:\.\d+)?)`)
	smogRe          = regexp.MustCompile(`(?i)smog[^-\d]*(-?\d+(?:\.\d+)?)`)
	ariRe           = regexp.MustCompile(`(?i)\bari\b[^-\d]*(-?\d+(?:\.\d+)?)`)

	// Stress values appear in two label forms. Out-of-range matches are
	// discarded rather than clamped so unrelated numbers do not leak in.
	stressScoreRe = regexp.MustCompile(`(?i)stress\s*score[^\d]*(\d+(?:\.\d+)?)`)
	stresslensRe  = regexp.MustCompile(`(?i)stress\s*lens[^\d]*(\d+(?:\.\d+)?)`)

	primaryTopicRe = regexp.MustCompile(`(?i)primary\s*topic[:\s]+([^\n(]+?)(?:\s*\((\d+(?:\.\d+)?)\))?\s*(?:\n|$)`)
)

// ParseHTML parses one annotated HTML transcript page. The parser never
// fails on malformed segment markup; unparseable segments are skipped and
// recorded as warnings.
func ParseHTML(filename string, r io.Reader) (*ParsedVideo, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML document: %w", err)
	}

	result := &ParsedVideo{
		Metadata: htmlMetadata(filename, doc),
	}

	doc.Find(segmentSelector).Each(func(i int, sel *goquery.Selection) {
		segment, reason := parseHTMLSegment(i, sel)
		if segment == nil {
			result.Warnings = append(result.Warnings, Warning{Index: i, Reason: reason})
			return
		}
		result.Segments = append(result.Segments, *segment)
	})

	return result, nil
}

// htmlMetadata derives the video row values from the filename and document
// head. The filename is authoritative for date and event facets.
func htmlMetadata(filename string, doc *goquery.Document) VideoMetadata {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filepath.Base(filename))))

	meta := VideoMetadata{
		Filename:   filepath.Base(filename),
		Date:       dateFromFilename(base),
		Source:     matchFacet(base, sourcePatterns),
		Format:     matchFacet(base, formatPatterns),
		Candidate:  matchFacet(base, candidatePatterns),
		Place:      matchPlace(base),
		RecordType: matchFacet(base, recordTypePatterns),
	}

	if meta.Date == nil {
		if modified, ok := doc.Find(`meta[property="article:modified_time"]`).Attr("content"); ok {
			meta.Date = parseMetaTime(modified)
		}
	}

	meta.Title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	meta.Description = strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	meta.ThumbnailURL = strings.TrimSpace(doc.Find(`meta[property="og:image"]`).AttrOr("content", ""))

	doc.Find("iframe[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src := sel.AttrOr("src", "")
		if m := vimeoIDRe.FindStringSubmatch(src); m != nil {
			meta.VimeoID = m[1]
			meta.URL = "https://vimeo.com/" + m[1]
			return false
		}
		if m := youtubeIDRe.FindStringSubmatch(src); m != nil {
			meta.YouTubeID = m[1]
			meta.URL = "https://www.youtube.com/watch?v=" + m[1]
			return false
		}
		return true
	})

	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && meta.URL == "" {
		meta.URL = strings.TrimSpace(canonical)
	}

	return meta
}

func parseMetaTime(value string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return &t
		}
	}
	return nil
}

// parseHTMLSegment extracts one segment from its block, or returns a skip
// reason.
func parseHTMLSegment(index int, sel *goquery.Selection) (*ParsedSegment, string) {
	segment := &ParsedSegment{
		SegmentID:   fmt.Sprintf("seg-%04d", index),
		SegmentType: models.SegmentTypeSpoken,
	}

	segment.SpeakerName = strings.TrimSpace(sel.Find("h2").First().Text())
	if segment.SpeakerName == "" {
		return nil, "missing speaker heading"
	}

	segment.Text = strings.TrimSpace(sel.Find("div.transcript-text").First().Text())
	if segment.Text == "" {
		segment.Text = longestDivText(sel)
	}
	if segment.Text == "" {
		return nil, "missing transcript text"
	}

	if raw, ok := sel.Find("a[data-seconds]").First().Attr("data-seconds"); ok {
		if seconds, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && seconds >= 0 {
			segment.VideoSeconds = &seconds
		}
	}

	if m := timeRangeRe.FindStringSubmatch(sel.Find("span").Text()); m != nil {
		segment.TimestampStart = m[1]
		segment.TimestampEnd = m[2]
		if d, err := strconv.ParseFloat(m[3], 64); err == nil {
			segment.DurationSeconds = d
		}
	}

	if details := detailsText(sel); details != "" {
		applyAnalytics(segment, details)
	}

	return segment, ""
}

// longestDivText falls back to the longest leaf div when the expected
// transcript class is absent.
func longestDivText(sel *goquery.Selection) string {
	best := ""
	sel.Find("div").Each(func(_ int, div *goquery.Selection) {
		if div.Children().Length() > 0 {
			return
		}
		text := strings.TrimSpace(div.Text())
		if len(text) > len(best) {
			best = text
		}
	})
	return best
}

// detailsText returns the text of the expandable analytics block, if any.
func detailsText(sel *goquery.Selection) string {
	if block := sel.Find("div.segment-details").First(); block.Length() > 0 {
		return block.Text()
	}
	if block := sel.Find("details").First(); block.Length() > 0 {
		return block.Text()
	}
	return ""
}

// applyAnalytics extracts sentiment, moderation, readability, stresslens,
// and topic values from the details text.
func applyAnalytics(segment *ParsedSegment, details string) {
	segment.SentimentLoughranScore, segment.SentimentLoughranLabel = scoreWithLabel(loughranRe, details)
	segment.SentimentHarvardScore, segment.SentimentHarvardLabel = scoreWithLabel(harvardRe, details)
	segment.SentimentVaderScore, segment.SentimentVaderLabel = scoreWithLabel(vaderRe, details)

	segment.ModerationHarassment = findScore(harassmentRe, details)
	segment.ModerationHate = findScore(hateRe, details)
	segment.ModerationViolence = findScore(violenceRe, details)
	segment.ModerationSexual = findScore(sexualRe, details)
	segment.ModerationSelfHarm = findScore(selfHarmRe, details)

	segment.FleschKincaidGrade = findScore(fleschKincaidRe, details)
	segment.FleschReadingEase = findScore(readingEaseRe, details)
	segment.GunningFog = findScore(gunningFogRe, details)
	segment.ColemanLiau = findScore(colemanLiauRe, details)
	segment.SMOG = findScore(smogRe, details)
	segment.ARI = findScore(ariRe, details)

	stress := findScore(stressScoreRe, details)
	if stress == nil {
		stress = findScore(stresslensRe, details)
	}
	if stress != nil && *stress >= 0 && *stress <= 1 {
		segment.StresslensScore = stress
		rank := models.StresslensRankFor(*stress)
		segment.StresslensRank = &rank
	}

	if m := primaryTopicRe.FindStringSubmatch(details); m != nil {
		segment.PrimaryTopic = strings.TrimSpace(m[1])
		if len(m) > 2 && m[2] != "" {
			if score, err := strconv.ParseFloat(m[2], 64); err == nil {
				segment.PrimaryTopicScore = &score
			}
		}
	}
}

func scoreWithLabel(re *regexp.Regexp, text string) (*float64, string) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, ""
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, ""
	}
	label := ""
	if len(m) > 2 {
		label = strings.TrimSpace(m[2])
	}
	return &score, label
}

func findScore(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &score
}
