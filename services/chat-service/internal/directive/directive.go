// Package directive parses the machine-readable instruction the dialogue
// model may embed in its reply. The block is delimited by fixed markers and
// is always stripped from the text shown to the customer, whether or not it
// parses. The model only proposes state changes; applying them is someone
// else's job.
package directive

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	openMarker  = "<action>"
	closeMarker = "</action>"
)

type Type string

const (
	TypeCreate     Type = "create"
	TypeConfirm    Type = "confirm"
	TypeCancel     Type = "cancel"
	TypeReschedule Type = "reschedule"
)

var ErrMalformed = errors.New("malformed directive block")

// Directive is one proposed appointment mutation. Date fields are YYYY-MM-DD
// and time fields HH:MM, matching ledger storage. Reschedule uses the
// old_date/old_time pair to locate the appointment and new_date/new_time for
// the target slot; the other types locate by date/time.
type Directive struct {
	Type       Type   `json:"type"`
	PetName    string `json:"pet_name"`
	OwnerName  string `json:"owner_name"`
	OwnerPhone string `json:"owner_phone"`
	Service    string `json:"service"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Notes      string `json:"notes"`
	OldDate    string `json:"old_date"`
	OldTime    string `json:"old_time"`
	NewDate    string `json:"new_date"`
	NewTime    string `json:"new_time"`
}

// Extract scans the reply for a directive block. It returns the reply with
// every block removed, plus the parsed directive if the first block parsed
// and validated. A present-but-broken block yields ErrMalformed and a nil
// directive; the visible text is stripped either way.
func Extract(reply string) (string, *Directive, error) {
	start := strings.Index(reply, openMarker)
	if start < 0 {
		return strings.TrimSpace(reply), nil, nil
	}
	end := strings.Index(reply[start:], closeMarker)
	if end < 0 {
		// Opening marker with no close: drop everything from the marker on.
		return strings.TrimSpace(reply[:start]), nil, ErrMalformed
	}
	end += start

	raw := reply[start+len(openMarker) : end]
	visible := strings.TrimSpace(stripAll(reply))

	var d Directive
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return visible, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := d.validate(); err != nil {
		return visible, nil, err
	}
	return visible, &d, nil
}

func stripAll(reply string) string {
	for {
		start := strings.Index(reply, openMarker)
		if start < 0 {
			return reply
		}
		end := strings.Index(reply[start:], closeMarker)
		if end < 0 {
			return reply[:start]
		}
		reply = reply[:start] + reply[start+end+len(closeMarker):]
	}
}

func (d *Directive) validate() error {
	switch d.Type {
	case TypeCreate:
		if d.Service == "" || d.Date == "" || d.Time == "" {
			return fmt.Errorf("%w: create requires service, date and time", ErrMalformed)
		}
	case TypeConfirm, TypeCancel:
		if d.Date == "" || d.Time == "" {
			return fmt.Errorf("%w: %s requires date and time", ErrMalformed, d.Type)
		}
	case TypeReschedule:
		if d.OldDate == "" || d.OldTime == "" || d.NewDate == "" || d.NewTime == "" {
			return fmt.Errorf("%w: reschedule requires old_date, old_time, new_date and new_time", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, d.Type)
	}
	return nil
}
