package models

import "fmt"

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Rect is a bounding rectangle in device pixels, as reported by the UI tree.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// ConversationCandidate is one conversation row visible on a single snapshot.
// It is only valid for the snapshot it was parsed from.
type ConversationCandidate struct {
	DisplayName string
	TapPoint    Point
}

// ConversationSelection identifies "the Nth visible conversation named X"
// within one discovery pass. OccurrenceIndex is 1-based.
type ConversationSelection struct {
	Name            string `json:"name"`
	OccurrenceIndex int    `json:"occurrenceIndex"`
}

func (s ConversationSelection) String() string {
	if s.OccurrenceIndex <= 1 {
		return s.Name
	}
	return fmt.Sprintf("%s #%d", s.Name, s.OccurrenceIndex)
}
