package screen

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jlmalone/WhatsLiberation/internal/models"
	"golang.org/x/text/cases"
)

var boundsPattern = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// Node is one element of a uiautomator dump.
type Node struct {
	Text        string `xml:"text,attr"`
	ResourceID  string `xml:"resource-id,attr"`
	Class       string `xml:"class,attr"`
	Package     string `xml:"package,attr"`
	ContentDesc string `xml:"content-desc,attr"`
	Clickable   string `xml:"clickable,attr"`
	Bounds      string `xml:"bounds,attr"`
	Nodes       []Node `xml:"node"`
}

type hierarchy struct {
	XMLName xml.Name `xml:"hierarchy"`
	Nodes   []Node   `xml:"node"`
}

// Snapshot is one parsed UI tree. It is immutable and only describes the
// screen at the moment it was captured.
type Snapshot struct {
	Raw    string
	Nodes  []Node
	Screen models.Rect
}

// TextMatch selects how LocateByText compares labels.
type TextMatch int

const (
	MatchExact TextMatch = iota
	MatchFold
)

// Parse decodes a raw dump. Output noise before "<?xml" and after the last
// '>' is dropped. The screen is the root element's rectangle, or fallback
// when the root has none.
func Parse(raw string, fallback models.Rect) (*Snapshot, error) {
	doc := raw
	if i := strings.Index(doc, "<?xml"); i >= 0 {
		doc = doc[i:]
	} else if i := strings.Index(doc, "<hierarchy"); i >= 0 {
		doc = doc[i:]
	}
	if i := strings.LastIndex(doc, ">"); i >= 0 {
		doc = doc[:i+1]
	}
	if !strings.Contains(doc, "<hierarchy") {
		return nil, fmt.Errorf("snapshot has no UI hierarchy")
	}

	var h hierarchy
	if err := xml.Unmarshal([]byte(fixEntities(doc)), &h); err != nil {
		return nil, fmt.Errorf("failed to parse UI XML (length: %d): %w", len(doc), err)
	}

	s := &Snapshot{Raw: doc, Nodes: h.Nodes, Screen: fallback}
	if len(h.Nodes) > 0 {
		if r, ok := ParseBounds(h.Nodes[0].Bounds); ok && !r.Empty() {
			s.Screen = r
		}
	}
	return s, nil
}

// uiautomator occasionally emits bare ampersands in labels.
func fixEntities(doc string) string {
	doc = strings.ReplaceAll(doc, "&", "&amp;")
	doc = strings.ReplaceAll(doc, "&amp;amp;", "&amp;")
	doc = strings.ReplaceAll(doc, "&amp;lt;", "&lt;")
	doc = strings.ReplaceAll(doc, "&amp;gt;", "&gt;")
	doc = strings.ReplaceAll(doc, "&amp;quot;", "&quot;")
	doc = strings.ReplaceAll(doc, "&amp;apos;", "&apos;")
	doc = strings.ReplaceAll(doc, "&amp;#", "&#")
	return doc
}

// ParseBounds reads "[x1,y1][x2,y2]".
func ParseBounds(s string) (models.Rect, bool) {
	m := boundsPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return models.Rect{}, false
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return models.Rect{}, false
		}
		v[i] = n
	}
	return models.Rect{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}, true
}

// MatchesID reports whether resourceID is id, or ends in ":id/<id>". An
// empty id matches everything.
func MatchesID(resourceID, id string) bool {
	if id == "" {
		return true
	}
	return resourceID == id || strings.HasSuffix(resourceID, ":id/"+id)
}

func (n *Node) label() string {
	if n.Text != "" {
		return n.Text
	}
	return n.ContentDesc
}

// walk visits nodes in document order until fn returns true.
func walk(nodes []Node, fn func(n *Node) bool) bool {
	for i := range nodes {
		if fn(&nodes[i]) {
			return true
		}
		if walk(nodes[i].Nodes, fn) {
			return true
		}
	}
	return false
}

// tapPoint returns the centre of n if its rectangle is usable on this screen.
func (s *Snapshot) tapPoint(n *Node) (models.Point, bool) {
	r, ok := ParseBounds(n.Bounds)
	if !ok || r.Empty() {
		return models.Point{}, false
	}
	p := r.Center()
	if !s.Screen.Contains(p) {
		return models.Point{}, false
	}
	return p, true
}

func (s *Snapshot) locate(match func(n *Node) bool) (models.Point, bool) {
	var found models.Point
	ok := walk(s.Nodes, func(n *Node) bool {
		if !match(n) {
			return false
		}
		p, valid := s.tapPoint(n)
		if valid {
			found = p
		}
		return valid
	})
	return found, ok
}

// Candidates lists the conversation rows visible on this snapshot in
// document order. Rows without a name or a usable rectangle are skipped.
func (s *Snapshot) Candidates(rowNameID string) []models.ConversationCandidate {
	var out []models.ConversationCandidate
	walk(s.Nodes, func(n *Node) bool {
		if rowNameID == "" || !MatchesID(n.ResourceID, rowNameID) {
			return false
		}
		name := strings.TrimSpace(n.label())
		if name == "" {
			return false
		}
		p, ok := s.tapPoint(n)
		if !ok {
			return false
		}
		out = append(out, models.ConversationCandidate{DisplayName: name, TapPoint: p})
		return false
	})
	return out
}

// Locate finds the first element carrying id.
func (s *Snapshot) Locate(id string) (models.Point, bool) {
	if id == "" {
		return models.Point{}, false
	}
	return s.locate(func(n *Node) bool { return MatchesID(n.ResourceID, id) })
}

// LocateByText finds the first element with id whose text or content-desc
// equals text.
func (s *Snapshot) LocateByText(id, text string, mode TextMatch) (models.Point, bool) {
	if text == "" {
		return models.Point{}, false
	}
	fold := cases.Fold()
	want := strings.TrimSpace(text)
	if mode == MatchFold {
		want = fold.String(want)
	}
	return s.locate(func(n *Node) bool {
		if !MatchesID(n.ResourceID, id) {
			return false
		}
		for _, v := range []string{n.Text, n.ContentDesc} {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if mode == MatchFold {
				v = fold.String(v)
			}
			if v == want {
				return true
			}
		}
		return false
	})
}

// LocateContaining finds the first element with id whose text or
// content-desc contains fragment, ignoring case.
func (s *Snapshot) LocateContaining(id, fragment string) (models.Point, bool) {
	if fragment == "" {
		return models.Point{}, false
	}
	fold := cases.Fold()
	want := fold.String(fragment)
	return s.locate(func(n *Node) bool {
		if !MatchesID(n.ResourceID, id) {
			return false
		}
		return strings.Contains(fold.String(n.Text), want) || strings.Contains(fold.String(n.ContentDesc), want)
	})
}

// TextOf returns the label of the first element carrying id.
func (s *Snapshot) TextOf(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	var text string
	ok := walk(s.Nodes, func(n *Node) bool {
		if !MatchesID(n.ResourceID, id) {
			return false
		}
		text = strings.TrimSpace(n.label())
		return true
	})
	return text, ok
}

// Labels returns every non-empty text in document order.
func (s *Snapshot) Labels() []string {
	var out []string
	walk(s.Nodes, func(n *Node) bool {
		if l := strings.TrimSpace(n.label()); l != "" {
			out = append(out, l)
		}
		return false
	})
	return out
}
