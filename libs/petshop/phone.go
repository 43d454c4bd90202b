package petshop

import "strings"

// NormalizePhone strips the gateway JID suffix and every non-digit rune.
func NormalizePhone(raw string) string {
	raw = strings.TrimSuffix(raw, "@s.whatsapp.net")
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// PhonesMatch compares two phone numbers tolerating country-code prefixes:
// stored numbers may or may not carry the country code the gateway sends.
func PhonesMatch(a, b string) bool {
	a = NormalizePhone(a)
	b = NormalizePhone(b)
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}
