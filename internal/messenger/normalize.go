package messenger

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Payload prefixes for generated button and quick-reply payloads.
const (
	ButtonPayloadPrefix     = "BOT_BUTTON_"
	QuickReplyPayloadPrefix = "BOT_QR_"
	GetStartedPayload       = "BOT_GET_STARTED"
)

// NormalizePayload folds a title into a payload suffix: accents are stripped,
// everything except ASCII letters and digits is dropped, and the result is
// upper-cased. "Café au lait" becomes "CAFEAULAIT".
func NormalizePayload(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ButtonPayload returns the payload generated for a button titled title.
func ButtonPayload(title string) string {
	return ButtonPayloadPrefix + NormalizePayload(title)
}

// QuickReplyPayload returns the payload generated for a quick reply titled title.
func QuickReplyPayload(title string) string {
	return QuickReplyPayloadPrefix + NormalizePayload(title)
}
