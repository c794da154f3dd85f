package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/stenograf/stenograf/internal/models"
)

// VLOSNamespace is the schema namespace of parliamentary session reports.
const VLOSNamespace = "http://www.tweedekamer.nl/ggm/vergaderverslag/v1.0"

// UnknownSpeaker is the fallback name when no salutation matches.
const UnknownSpeaker = "Onbekend"

// chairSpeaker is the generic chair attribution before resolution.
const chairSpeaker = "De voorzitter"

var (
	aanvangRe  = regexp.MustCompile(`Aanvang\s+(\d{1,2}\.\d{2})\s+uur`)
	sluitingRe = regexp.MustCompile(`Sluiting\s+(\d{1,2}\.\d{2})\s+uur`)
	verslagRe  = regexp.MustCompile(`^Verslag van\s+`)
	aanwezigRe = regexp.MustCompile(`Aanwezig zijn\s+(.+)$`)

	// Salutation ladder, applied in order against the leading speech label.
	deHeerLabelRe      = regexp.MustCompile(`^De heer\s+([^:(]+?)(?:\s*\(([^)]+)\))?\s*:\s*`)
	mevrouwLabelRe     = regexp.MustCompile(`^Mevrouw\s+([^:(]+?)(?:\s*\(([^)]+)\))?\s*:\s*`)
	ministerLabelRe    = regexp.MustCompile(`^Minister\s+([^:(]+?)\s*:\s*`)
	staatssecLabelRe   = regexp.MustCompile(`^Staatssecretaris\s+([^:(]+?)\s*:\s*`)
	voorzitterLabelRe  = regexp.MustCompile(`^De voorzitter\s*:\s*`)
	attendeeMinisterRe = regexp.MustCompile(`^(?:minister|staatssecretaris)\b`)
)

// vlosNode is a generic element tree node. Parent links are attached after
// decoding so timing lookups can walk up the ancestor chain.
type vlosNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr  `xml:",any,attr"`
	Children []*vlosNode `xml:",any"`
	Text     string      `xml:",chardata"`

	parent *vlosNode
}

func (n *vlosNode) local() string {
	return strings.ToLower(n.XMLName.Local)
}

// fullText concatenates all character data under the node in document order.
func (n *vlosNode) fullText() string {
	var b strings.Builder
	n.walkText(&b)
	return collapseWhitespace(b.String())
}

func (n *vlosNode) walkText(b *strings.Builder) {
	if t := strings.TrimSpace(n.Text); t != "" {
		b.WriteString(t)
		b.WriteByte(' ')
	}
	for _, c := range n.Children {
		c.walkText(b)
	}
}

func hasDirectChild(n *vlosNode, name string) bool {
	for _, c := range n.Children {
		if c.local() == name {
			return true
		}
	}
	return false
}

// firstDescendant returns the first descendant with the local name, or nil.
func (n *vlosNode) firstDescendant(name string) *vlosNode {
	for _, c := range n.Children {
		if c.local() == name {
			return c
		}
		if found := c.firstDescendant(name); found != nil {
			return found
		}
	}
	return nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseVLOS parses one parliamentary XML session report.
func ParseVLOS(filename string, r io.Reader) (*ParsedVideo, error) {
	var root vlosNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding VLOS XML: %w", err)
	}
	if root.XMLName.Space != "" && root.XMLName.Space != VLOSNamespace {
		return nil, fmt.Errorf("unexpected XML namespace %q", root.XMLName.Space)
	}
	linkParents(&root)

	result := &ParsedVideo{
		Metadata: VideoMetadata{Filename: filepath.Base(filename)},
	}
	collectSessionMetadata(&root, &result.Metadata)
	if result.Metadata.Title == "" {
		result.Metadata.Title = strings.TrimSuffix(result.Metadata.Filename, filepath.Ext(result.Metadata.Filename))
	}

	utterances := collectUtterances(&root)
	segments := buildSegments(utterances, result.Metadata.Chair)
	result.Segments = segments
	return result, nil
}

func linkParents(n *vlosNode) {
	for _, c := range n.Children {
		c.parent = n
		linkParents(c)
	}
}

// collectSessionMetadata walks the whole tree once for chair, admin timings,
// the summary intro, and the attendee list.
func collectSessionMetadata(root *vlosNode, meta *VideoMetadata) {
	var walk func(n *vlosNode)
	walk = func(n *vlosNode) {
		switch n.local() {
		case "voorzitter":
			if meta.Chair == "" {
				meta.Chair = n.fullText()
			}
		case "titel":
			if meta.Title == "" {
				meta.Title = n.fullText()
			}
		}

		text := collapseWhitespace(n.Text)
		if text != "" {
			if m := aanvangRe.FindStringSubmatch(text); m != nil && meta.SessionStartTime == "" {
				meta.SessionStartTime = m[1]
			}
			if m := sluitingRe.FindStringSubmatch(text); m != nil && meta.SessionEndTime == "" {
				meta.SessionEndTime = m[1]
			}
			if verslagRe.MatchString(text) && meta.SummaryIntro == "" {
				meta.SummaryIntro = text
			}
			if m := aanwezigRe.FindStringSubmatch(text); m != nil && meta.Attendees == nil {
				meta.Attendees = parseAttendees(m[1])
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
}

// parseAttendees splits an "Aanwezig zijn …" sentence into members and
// ministers. Items are separated by commas and a final "en".
func parseAttendees(list string) *Attendees {
	list = strings.TrimSuffix(strings.TrimSpace(list), ".")
	parts := strings.Split(list, ",")
	var expanded []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if head, tail, found := strings.Cut(p, " en "); found {
			expanded = append(expanded, strings.TrimSpace(head), strings.TrimSpace(tail))
		} else {
			expanded = append(expanded, p)
		}
	}

	attendees := &Attendees{}
	for _, item := range expanded {
		if item == "" {
			continue
		}
		lower := strings.ToLower(item)
		switch {
		case attendeeMinisterRe.MatchString(lower):
			// "minister van Financiën Hoekstra" keeps only the surname.
			fields := strings.Fields(item)
			attendees.Ministers = append(attendees.Ministers, fields[len(fields)-1])
		case strings.HasPrefix(lower, "de heer "):
			attendees.Members = append(attendees.Members, strings.TrimSpace(item[len("de heer "):]))
		case strings.HasPrefix(lower, "mevrouw "):
			attendees.Members = append(attendees.Members, strings.TrimSpace(item[len("mevrouw "):]))
		default:
			attendees.Members = append(attendees.Members, item)
		}
	}
	return attendees
}

// utterance is one raw speech fragment before merging.
type utterance struct {
	speaker   string
	party     string
	isChair   bool
	text      string
	beginSecs *int
	endSecs   *int
	beginTS   string
	endTS     string
}

// collectUtterances materializes speech fragments from woordvoerder
// elements, falling back to any element with a spreker child and text.
func collectUtterances(root *vlosNode) []utterance {
	var nodes []*vlosNode
	var collect func(n *vlosNode)
	collect = func(n *vlosNode) {
		if n.local() == "woordvoerder" {
			nodes = append(nodes, n)
			return
		}
		for _, c := range n.Children {
			collect(c)
		}
	}
	collect(root)

	if len(nodes) == 0 {
		var fallback func(n *vlosNode)
		fallback = func(n *vlosNode) {
			if hasDirectChild(n, "spreker") && utteranceText(n) != "" {
				nodes = append(nodes, n)
				return
			}
			for _, c := range n.Children {
				fallback(c)
			}
		}
		fallback(root)
	}

	utterances := make([]utterance, 0, len(nodes))
	for _, n := range nodes {
		if u, ok := parseUtterance(n); ok {
			utterances = append(utterances, u)
		}
	}
	return utterances
}

func parseUtterance(n *vlosNode) (utterance, bool) {
	u := utterance{text: utteranceText(n)}
	if u.text == "" {
		return u, false
	}
	if aanvangRe.MatchString(u.text) || sluitingRe.MatchString(u.text) || aanwezigRe.MatchString(u.text) {
		return u, false
	}

	u.speaker, u.party, u.isChair = resolveSpeaker(n, &u.text)

	begin, end := timingFor(n)
	if begin != nil {
		secs := secondsOfDay(*begin)
		u.beginSecs = &secs
		u.beginTS = begin.Format("15:04:05")
	}
	if end != nil {
		secs := secondsOfDay(*end)
		u.endSecs = &secs
		u.endTS = end.Format("15:04:05")
	}
	return u, true
}

// utteranceText is the utterance's text without its spreker and timing
// children, so neither the speaker's printed name nor marker timestamps
// leak into the speech.
func utteranceText(n *vlosNode) string {
	var b strings.Builder
	var walk func(m *vlosNode)
	walk = func(m *vlosNode) {
		switch m.local() {
		case "spreker", "markeertijdbegin", "markeertijdeind":
			return
		}
		if t := strings.TrimSpace(m.Text); t != "" {
			b.WriteString(t)
			b.WriteByte(' ')
		}
		for _, c := range m.Children {
			walk(c)
		}
	}
	walk(n)
	return collapseWhitespace(b.String())
}

// resolveSpeaker derives identity from the leading speech label, applying
// the salutation ladder, and strips that label from the text. When no label
// is present the spreker element's fields are used.
func resolveSpeaker(n *vlosNode, text *string) (name, party string, isChair bool) {
	if m := voorzitterLabelRe.FindStringSubmatch(*text); m != nil {
		*text = strings.TrimSpace((*text)[len(m[0]):])
		return chairSpeaker, "", true
	}
	for _, re := range []*regexp.Regexp{deHeerLabelRe, mevrouwLabelRe} {
		if m := re.FindStringSubmatch(*text); m != nil {
			*text = strings.TrimSpace((*text)[len(m[0]):])
			return strings.TrimSpace(m[1]), NormalizeParty(m[2]), false
		}
	}
	for _, re := range []*regexp.Regexp{ministerLabelRe, staatssecLabelRe} {
		if m := re.FindStringSubmatch(*text); m != nil {
			*text = strings.TrimSpace((*text)[len(m[0]):])
			return strings.TrimSpace(m[1]), "", false
		}
	}

	if spreker := n.firstDescendant("spreker"); spreker != nil {
		if functie := spreker.firstDescendant("functie"); functie != nil &&
			strings.Contains(strings.ToLower(functie.fullText()), "voorzitter") {
			return chairSpeaker, "", true
		}
		name := ""
		if achternaam := spreker.firstDescendant("achternaam"); achternaam != nil {
			name = achternaam.fullText()
		}
		if verslagnaam := spreker.firstDescendant("verslagnaam"); name == "" && verslagnaam != nil {
			name = verslagnaam.fullText()
		}
		if name != "" {
			party := ""
			if fractie := spreker.firstDescendant("fractie"); fractie != nil {
				party = NormalizeParty(fractie.fullText())
			}
			return name, party, false
		}
	}
	return UnknownSpeaker, "", false
}

// NormalizeParty collapses dots and case in a party label. Hyphen and slash
// coalitions pass through in uppercase.
func NormalizeParty(party string) string {
	party = strings.TrimSpace(party)
	if party == "" {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(party, ".", ""))
}

// timingFor finds the markeertijd pair on the node or its nearest ancestor.
func timingFor(n *vlosNode) (begin, end *time.Time) {
	for cur := n; cur != nil; cur = cur.parent {
		b := markerTime(cur, "markeertijdbegin")
		e := markerTime(cur, "markeertijdeind")
		if b != nil || e != nil {
			return b, e
		}
	}
	return nil, nil
}

func markerTime(n *vlosNode, name string) *time.Time {
	raw := ""
	for _, a := range n.Attrs {
		if strings.ToLower(a.Name.Local) == name {
			raw = a.Value
			break
		}
	}
	if raw == "" {
		for _, c := range n.Children {
			if c.local() == name {
				raw = strings.TrimSpace(c.Text)
				break
			}
		}
	}
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// buildSegments merges contiguous same-speaker utterances, suppresses
// duplicates, applies chair attribution, and drops fragments shorter than
// two characters.
func buildSegments(utterances []utterance, chair string) []ParsedSegment {
	type key struct {
		speaker string
		begin   int
		end     int
		text    string
	}
	seen := make(map[key]bool)

	var merged []utterance
	for _, u := range utterances {
		k := key{speaker: u.speaker, text: u.text}
		if u.beginSecs != nil {
			k.begin = *u.beginSecs
		}
		if u.endSecs != nil {
			k.end = *u.endSecs
		}
		if seen[k] {
			continue
		}
		seen[k] = true

		if len(merged) > 0 {
			prev := &merged[len(merged)-1]
			if prev.speaker == u.speaker && contiguous(*prev, u) {
				prev.text = strings.TrimSpace(prev.text + " " + u.text)
				if u.endSecs != nil {
					prev.endSecs = u.endSecs
					prev.endTS = u.endTS
				}
				continue
			}
		}
		merged = append(merged, u)
	}

	segments := make([]ParsedSegment, 0, len(merged))
	for _, u := range merged {
		if len(u.text) < 2 {
			continue
		}
		name := u.speaker
		if u.isChair && chair != "" {
			name = chair
		}
		s := ParsedSegment{
			SegmentID:      fmt.Sprintf("seg-%04d", len(segments)),
			SegmentType:    models.SegmentTypeSpoken,
			SpeakerName:    name,
			SpeakerParty:   u.party,
			Text:           u.text,
			VideoSeconds:   u.beginSecs,
			TimestampStart: u.beginTS,
			TimestampEnd:   u.endTS,
		}
		if u.beginSecs != nil && u.endSecs != nil && *u.endSecs >= *u.beginSecs {
			s.DurationSeconds = float64(*u.endSecs - *u.beginSecs)
		}
		segments = append(segments, s)
	}
	return segments
}

// contiguous reports whether the next utterance continues the previous
// speaker's time range. An utterance without timing continues by default.
func contiguous(prev, next utterance) bool {
	if next.beginSecs == nil {
		return true
	}
	if prev.endSecs == nil {
		return prev.beginSecs == nil
	}
	return *next.beginSecs-*prev.endSecs <= 1
}
