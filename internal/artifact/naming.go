package artifact

import (
	"strings"
	"time"
	"unicode"

	"github.com/jlmalone/WhatsLiberation/internal/matcher"
)

const fromChatMarker = "FROM_CHAT"

// NameParts are the inputs of an export file name.
type NameParts struct {
	Channel      string
	ChatName     string
	ExternalID   string
	PhoneDigits  string
	Date         time.Time
	IncludeMedia bool
}

// BuildName returns CHANNEL_NAME_FROM_CHAT_EXTID_DIGITS_YYYYMMDD plus .zip
// when media was included and .txt otherwise. Empty parts are omitted.
func BuildName(p NameParts) string {
	var parts []string
	for _, s := range []string{p.Channel, p.ChatName} {
		if t := token(s); t != "" {
			parts = append(parts, t)
		}
	}
	parts = append(parts, fromChatMarker)
	for _, s := range []string{p.ExternalID, Digits(p.PhoneDigits)} {
		if t := token(s); t != "" {
			parts = append(parts, t)
		}
	}
	parts = append(parts, p.Date.Format("20060102"))

	ext := ".txt"
	if p.IncludeMedia {
		ext = ".zip"
	}
	return strings.Join(parts, "_") + ext
}

// token uppercases s and turns every run of other characters into a
// single underscore.
func token(s string) string {
	s = strings.ToUpper(matcher.Normalize(s))
	var b strings.Builder
	pending := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// Digits keeps only the decimal digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsPhoneLike reports whether a display name is a raw phone number, as
// shown for conversations with people missing from the address book.
func IsPhoneLike(name string) bool {
	digits := 0
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-() .", r):
		default:
			return false
		}
	}
	return digits >= 7
}
