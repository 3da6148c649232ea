package page

import (
	"fmt"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// DateParser turns a human-readable date header into a time.
type DateParser interface {
	Parse(text string) (time.Time, error)
}

// headerLayouts are the date header formats Blogger templates emit.
var headerLayouts = []string{
	"Monday, January 2, 2006",
	"Monday, 2 January 2006",
	"Monday, January 02, 2006",
	"Mon, January 2, 2006",
	"Mon, Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"02/01/2006",
	"1/2/2006",
}

// NaturalDates parses Blogger header layouts directly and falls back to
// natural-language parsing for localized or unusual headers.
type NaturalDates struct {
	cfg *dps.Configuration
}

// NewNaturalDates returns a DateParser. Dates are interpreted in loc.
func NewNaturalDates(loc *time.Location) *NaturalDates {
	if loc == nil {
		loc = time.Local
	}
	return &NaturalDates{cfg: &dps.Configuration{
		DefaultTimezone: loc,
	}}
}

// Parse implements DateParser.
func (d *NaturalDates) Parse(text string) (time.Time, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	loc := d.cfg.DefaultTimezone
	for _, layout := range headerLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}

	dt, err := dps.Parse(d.cfg, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", text, err)
	}
	return dt.Time, nil
}

var _ DateParser = (*NaturalDates)(nil)
