// Package musician implements the announcing side: a musician that plays
// one instrument and broadcasts its sound at a fixed interval.
package musician

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryandielhenn/auditor/internal/logging"
	"github.com/ryandielhenn/auditor/pkg/protocol"
	"github.com/ryandielhenn/auditor/pkg/roster"
)

// DefaultInterval is how often a musician plays.
const DefaultInterval = time.Second

var ErrUnknownInstrument = errors.New("unknown instrument")

var sounds = map[string]string{
	"piano":   "ti-ta-ti",
	"trumpet": "pouet",
	"flute":   "trulu",
	"violin":  "gzi-gzi",
	"drum":    "boum-boum",
}

// Instruments lists the known instruments in alphabetical order.
func Instruments() []string {
	out := make([]string, 0, len(sounds))
	for k := range sounds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SoundOf returns the sound an instrument makes.
func SoundOf(instrument string) (string, bool) {
	s, ok := sounds[strings.ToLower(instrument)]
	return s, ok
}

type Musician struct {
	ID          string
	Instrument  string
	Sound       string
	ActiveSince time.Time
	Interval    time.Duration

	log *zap.Logger
}

// New creates a musician with a fresh uuid, active from now.
func New(instrument string, log *zap.Logger) (*Musician, error) {
	instrument = strings.ToLower(strings.TrimSpace(instrument))
	sound, ok := sounds[instrument]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownInstrument, instrument, strings.Join(Instruments(), ", "))
	}
	id := uuid.New().String()
	return &Musician{
		ID:          id,
		Instrument:  instrument,
		Sound:       sound,
		ActiveSince: time.Now().UTC().Truncate(time.Second),
		Interval:    DefaultInterval,
		log:         logging.OrNop(log).Named("musician").With(zap.String("id", id)),
	}, nil
}

// Announcement encodes the datagram this musician sends.
func (m *Musician) Announcement() ([]byte, error) {
	sound, err := json.Marshal(m.Sound)
	if err != nil {
		return nil, err
	}
	since, err := json.Marshal(m.ActiveSince.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return protocol.EncodeAnnouncement(roster.Musician{
		ID:          m.ID,
		Sound:       sound,
		Instrument:  m.Instrument,
		ActiveSince: since,
	})
}

// Run writes one announcement to w immediately and then every Interval
// until ctx is done. Each Write is one datagram when w is a UDP conn.
// Write errors are logged; a musician keeps playing through them.
func (m *Musician) Run(ctx context.Context, w io.Writer) error {
	payload, err := m.Announcement()
	if err != nil {
		return fmt.Errorf("encode announcement: %w", err)
	}
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	m.log.Info("playing", zap.String("instrument", m.Instrument), zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.Write(payload); err != nil {
			m.log.Warn("send announcement", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
