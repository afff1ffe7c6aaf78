package contacts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Contact struct {
	DisplayName string
	ExternalID  string
}

// Directory resolves phone numbers to known contacts.
type Directory interface {
	LookupByPhone(digits string) (Contact, bool)
}

type entry struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
	ID    string `yaml:"id"`
}

// File is a Directory loaded from a YAML list of {name, phone, id}.
type File struct {
	byDigits map[string]Contact
	byTail   map[string]Contact
}

var _ Directory = (*File)(nil)

const tailDigits = 10

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts file: %w", err)
	}

	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse contacts YAML: %w", err)
	}

	f := &File{
		byDigits: make(map[string]Contact),
		byTail:   make(map[string]Contact),
	}
	for i, e := range entries {
		digits := onlyDigits(e.Phone)
		if digits == "" {
			return nil, fmt.Errorf("contact %d (%s) has no phone digits", i, e.Name)
		}
		c := Contact{DisplayName: strings.TrimSpace(e.Name), ExternalID: strings.TrimSpace(e.ID)}
		f.byDigits[digits] = c
		if len(digits) >= tailDigits {
			f.byTail[digits[len(digits)-tailDigits:]] = c
		}
	}
	return f, nil
}

// LookupByPhone matches the full digit string first, then the last ten
// digits so that numbers with and without a country code agree.
func (f *File) LookupByPhone(digits string) (Contact, bool) {
	digits = onlyDigits(digits)
	if digits == "" {
		return Contact{}, false
	}
	if c, ok := f.byDigits[digits]; ok {
		return c, true
	}
	if len(digits) >= tailDigits {
		c, ok := f.byTail[digits[len(digits)-tailDigits:]]
		return c, ok
	}
	return Contact{}, false
}

func (f *File) Len() int { return len(f.byDigits) }

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
