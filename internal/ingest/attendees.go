package ingest

import (
	"encoding/json"

	"github.com/stenograf/stenograf/internal/parser"
)

// attendeesJSON serializes the attendee lists for the video row.
func attendeesJSON(a *parser.Attendees) (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
