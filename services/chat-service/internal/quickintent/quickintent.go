// Package quickintent short-circuits the most common one-word replies so
// confirmations and cancellations never pay for a model round trip.
package quickintent

import "strings"

type Intent int

const (
	IntentNone Intent = iota
	IntentConfirm
	IntentReschedule
	IntentCancel
)

var vocabulary = map[string]Intent{
	"CONFIRMO":         IntentConfirm,
	"CONFIRMAR":        IntentConfirm,
	"REMARCAR":         IntentReschedule,
	"REAGENDAR":        IntentReschedule,
	"PRECISO REMARCAR": IntentReschedule,
	"CANCELAR":         IntentCancel,
	"CANCELA":          IntentCancel,
}

// Match normalizes the inbound text and returns the intent for an exact
// vocabulary hit. Anything else falls through to the dialogue flow.
func Match(text string) Intent {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	normalized = strings.Join(strings.Fields(normalized), " ")
	return vocabulary[normalized]
}
