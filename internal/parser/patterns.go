package parser

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Facet tables. Each table maps a filename fragment to its display value and
// is matched in order against the lowercased basename; the first hit wins,
// unmatched yields the empty string.

var candidatePatterns = []struct {
	fragment string
	value    string
}{
	{"donald-trump", "Donald Trump"},
	{"joe-biden", "Joe Biden"},
	{"kamala-harris", "Kamala Harris"},
	{"ron-desantis", "Ron DeSantis"},
	{"nikki-haley", "Nikki Haley"},
	{"mike-pence", "Mike Pence"},
	{"vivek-ramaswamy", "Vivek Ramaswamy"},
	{"bernie-sanders", "Bernie Sanders"},
	{"hillary-clinton", "Hillary Clinton"},
	{"barack-obama", "Barack Obama"},
}

var formatPatterns = []struct {
	fragment string
	value    string
}{
	{"political-rally", "Political Rally"},
	{"press-conference", "Press Conference"},
	{"town-hall", "Town Hall"},
	{"campaign-event", "Campaign Event"},
	{"victory-speech", "Victory Speech"},
	{"debate", "Debate"},
	{"interview", "Interview"},
	{"speech", "Speech"},
	{"remarks", "Remarks"},
}

var recordTypePatterns = []struct {
	fragment string
	value    string
}{
	{"transcript", "Transcript"},
	{"statement", "Statement"},
	{"address", "Address"},
	{"remarks", "Remarks"},
}

var sourcePatterns = []struct {
	fragment string
	value    string
}{
	{"c-span", "C-SPAN"},
	{"cspan", "C-SPAN"},
	{"rev-com", "Rev"},
	{"roll-call", "Roll Call"},
	{"white-house", "White House"},
}

// placeFragments lists known event locations as filename fragments. Multi
// word places keep their hyphen in the fragment and are title-cased for
// display.
var placeFragments = []string{
	"new-york", "las-vegas", "los-angeles", "san-francisco", "washington-dc",
	"grand-rapids", "green-bay", "sioux-city", "des-moines", "salt-lake-city",
	"miami", "phoenix", "dallas", "houston", "atlanta", "tampa", "tulsa",
	"charlotte", "milwaukee", "detroit", "philadelphia", "pittsburgh",
	"chicago", "cleveland", "columbus", "nashville", "orlando", "savannah",
	"tucson", "reno", "wildwood", "butler", "latrobe", "greensboro",
}

// titleCase creates a fresh caser per call; a shared Caser is not safe for
// concurrent ingest workers.
func titleCase(s string) string {
	return cases.Title(language.AmericanEnglish).String(s)
}

func matchFacet(name string, table []struct {
	fragment string
	value    string
}) string {
	for _, p := range table {
		if strings.Contains(name, p.fragment) {
			return p.value
		}
	}
	return ""
}

func matchPlace(name string) string {
	for _, fragment := range placeFragments {
		if strings.Contains(name, fragment) {
			return titleCase(strings.ReplaceAll(fragment, "-", " "))
		}
	}
	return ""
}

// Filename date forms, tried in priority order.
var (
	dateMonthNameRe = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)-(\d{1,2})-(\d{4})`)
	dateMDYRe       = regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`)
	dateISORe       = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
)

// dateFromFilename recovers the event date from the filename, or nil.
func dateFromFilename(name string) *time.Time {
	if m := dateMonthNameRe.FindStringSubmatch(name); m != nil {
		if t, err := time.Parse("January-2-2006", titleCase(m[1])+"-"+m[2]+"-"+m[3]); err == nil {
			return &t
		}
	}
	if m := dateMDYRe.FindStringSubmatch(name); m != nil {
		if t, err := time.Parse("1-2-2006", m[0]); err == nil {
			return &t
		}
	}
	if m := dateISORe.FindStringSubmatch(name); m != nil {
		if t, err := time.Parse("2006-01-02", m[0]); err == nil {
			return &t
		}
	}
	return nil
}
