// Package devicetest provides a scripted in-memory device for tests.
package devicetest

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/device"
	"github.com/jlmalone/WhatsLiberation/internal/models"
)

const (
	Width  = 1080
	Height = 2400
)

// Element is one node on a fake screen. Tapping it moves the device to Next
// when Next is set.
type Element struct {
	ID   string
	Text string
	Desc string
	Rect models.Rect
	Next string
}

// Screen is a named set of elements. Swiping moves to Scroll when set.
type Screen struct {
	Elements []Element
	Scroll   string
}

// Driver is a device.Driver whose UI is a graph of screens.
type Driver struct {
	Screens map[string]*Screen
	Home    string
	Current string

	// Remote files available to Pull, by path.
	Files map[string]string
	// ShellFunc answers Shell calls not handled by the fake itself.
	ShellFunc   func(args []string) (string, error)
	LaunchErr   error
	SnapshotErr error

	Calls     []string
	Snapshots int
	Taps      []models.Point
	Swipes    int
}

var _ device.Driver = (*Driver)(nil)

func New(home string) *Driver {
	return &Driver{
		Screens: make(map[string]*Screen),
		Home:    home,
		Current: home,
		Files:   make(map[string]string),
	}
}

// Add registers a screen and returns it for further setup.
func (d *Driver) Add(name string, elements ...Element) *Screen {
	s := &Screen{Elements: elements}
	d.Screens[name] = s
	return s
}

func (d *Driver) record(format string, args ...any) {
	d.Calls = append(d.Calls, fmt.Sprintf(format, args...))
}

func (d *Driver) Shell(_ context.Context, _ time.Duration, args ...string) (string, error) {
	d.record("shell %s", strings.Join(args, " "))
	if d.ShellFunc != nil {
		return d.ShellFunc(args)
	}
	if len(args) > 1 && args[0] == "ls" {
		return d.list(args[len(args)-1]), nil
	}
	return "", nil
}

// list emulates "ls -1 dir" over Files.
func (d *Driver) list(dir string) string {
	var names []string
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for p := range d.Files {
		if rest, ok := strings.CutPrefix(p, prefix); ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	return strings.Join(names, "\n")
}

func (d *Driver) Tap(_ context.Context, p models.Point) error {
	d.record("tap %d %d", p.X, p.Y)
	d.Taps = append(d.Taps, p)
	s, ok := d.Screens[d.Current]
	if !ok {
		return nil
	}
	for _, e := range s.Elements {
		if e.Next != "" && e.Rect.Contains(p) {
			d.Current = e.Next
			return nil
		}
	}
	return nil
}

func (d *Driver) Swipe(_ context.Context, from, to models.Point, duration time.Duration) error {
	d.record("swipe %d %d %d %d", from.X, from.Y, to.X, to.Y)
	d.Swipes++
	if s, ok := d.Screens[d.Current]; ok && s.Scroll != "" {
		d.Current = s.Scroll
	}
	return nil
}

func (d *Driver) LaunchApp(_ context.Context, pkg, activity string, restart bool) error {
	d.record("launch %s", pkg)
	if d.LaunchErr != nil {
		return d.LaunchErr
	}
	d.Current = d.Home
	return nil
}

func (d *Driver) Snapshot(_ context.Context) (string, error) {
	d.Snapshots++
	if d.SnapshotErr != nil {
		return "", d.SnapshotErr
	}
	s, ok := d.Screens[d.Current]
	if !ok {
		return Render(nil), nil
	}
	return Render(s.Elements), nil
}

func (d *Driver) Pull(_ context.Context, remote, local string) error {
	d.record("pull %s", remote)
	content, ok := d.Files[remote]
	if !ok {
		return models.NewError(models.CodeDeviceCommandFailed, "remote object does not exist: "+remote, nil)
	}
	return os.WriteFile(local, []byte(content), 0644)
}

// Render produces a uiautomator-style dump of elements on a full screen.
func Render(elements []Element) string {
	var b bytes.Buffer
	b.WriteString("<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>\n<hierarchy rotation=\"0\">\n")
	fmt.Fprintf(&b, `<node index="0" text="" resource-id="" class="android.widget.FrameLayout" content-desc="" bounds="[0,0][%d,%d]">`+"\n", Width, Height)
	for i, e := range elements {
		fmt.Fprintf(&b, `<node index="%d" text="%s" resource-id="%s" class="android.widget.TextView" content-desc="%s" bounds="[%d,%d][%d,%d]"/>`+"\n",
			i, escape(e.Text), escape(e.ID), escape(e.Desc), e.Rect.Left, e.Rect.Top, e.Rect.Right, e.Rect.Bottom)
	}
	b.WriteString("</node>\n</hierarchy>\n")
	return b.String()
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Row returns an element occupying the i-th row slot of a list.
func Row(id, text string, i int, next string) Element {
	top := 300 + i*200
	return Element{ID: id, Text: text, Rect: models.Rect{Left: 200, Top: top, Right: 900, Bottom: top + 120}, Next: next}
}

// Button returns a labelled element in the i-th button slot.
func Button(id, text string, i int, next string) Element {
	top := 200 + i*150
	return Element{ID: id, Text: text, Rect: models.Rect{Left: 100, Top: top, Right: 980, Bottom: top + 100}, Next: next}
}
