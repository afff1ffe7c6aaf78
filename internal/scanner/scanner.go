package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/device"
	"github.com/jlmalone/WhatsLiberation/internal/matcher"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/jlmalone/WhatsLiberation/internal/screen"
	"github.com/rs/zerolog"
)

const swipeDuration = 300 * time.Millisecond

type Options struct {
	RowNameID       string
	Limit           int
	MaxScrolls      int
	StagnationLimit int
	// Screen used when a snapshot does not report its own bounds.
	Fallback models.Rect
}

type Scanner struct {
	driver device.Driver
	opts   Options
	logger zerolog.Logger
}

func New(driver device.Driver, opts Options, logger zerolog.Logger) *Scanner {
	if opts.StagnationLimit < 1 {
		opts.StagnationLimit = 2
	}
	if opts.MaxScrolls < 0 {
		opts.MaxScrolls = 0
	}
	return &Scanner{driver: driver, opts: opts, logger: logger}
}

// Scan walks the conversation list from its current position, scrolling
// until limit entries are known, the list stops yielding new rows, or the
// scroll ceiling is hit. Entries are in first-seen order.
func (s *Scanner) Scan(ctx context.Context) ([]matcher.Entry, error) {
	tally := matcher.NewTally()
	stagnant := 0

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return s.truncate(tally), err
		}

		snap, err := Capture(ctx, s.driver, s.opts.Fallback)
		if err != nil {
			return s.truncate(tally), fmt.Errorf("page %d: %w", page, err)
		}

		added := tally.Add(page, snap.Candidates(s.opts.RowNameID))
		s.logger.Debug().Int("page", page).Int("new", added).Int("total", tally.Len()).Msg("scanned page")

		if s.opts.Limit > 0 && tally.Len() >= s.opts.Limit {
			break
		}
		if page > 0 {
			if added == 0 {
				stagnant++
			} else {
				stagnant = 0
			}
			if stagnant >= s.opts.StagnationLimit {
				s.logger.Debug().Int("page", page).Msg("list stopped yielding new conversations")
				break
			}
		}
		if page >= s.opts.MaxScrolls {
			s.logger.Warn().Int("maxScrolls", s.opts.MaxScrolls).Msg("scroll ceiling reached")
			break
		}

		if err := ScrollDown(ctx, s.driver, snap.Screen); err != nil {
			return s.truncate(tally), err
		}
	}

	entries := s.truncate(tally)
	s.logger.Info().Int("conversations", len(entries)).Msg("scan complete")
	return entries, nil
}

func (s *Scanner) truncate(t *matcher.Tally) []matcher.Entry {
	entries := t.Entries()
	if s.opts.Limit > 0 && len(entries) > s.opts.Limit {
		entries = entries[:s.opts.Limit]
	}
	return entries
}

// Capture takes and parses one snapshot.
func Capture(ctx context.Context, driver device.Driver, fallback models.Rect) (*screen.Snapshot, error) {
	raw, err := driver.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return screen.Parse(raw, fallback)
}

// ScrollDown swipes up across the middle half of the screen, moving the
// list forward by roughly half a page.
func ScrollDown(ctx context.Context, driver device.Driver, bounds models.Rect) error {
	x := bounds.Left + bounds.Width()/2
	from := models.Point{X: x, Y: bounds.Top + bounds.Height()*3/4}
	to := models.Point{X: x, Y: bounds.Top + bounds.Height()/4}
	return driver.Swipe(ctx, from, to, swipeDuration)
}
