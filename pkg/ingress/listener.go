// Package ingress feeds musician announcements from the multicast group into
// a roster.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/auditor/internal/logging"
	"github.com/ryandielhenn/auditor/internal/telemetry"
	"github.com/ryandielhenn/auditor/pkg/protocol"
	"github.com/ryandielhenn/auditor/pkg/roster"
)

// DefaultBufferSize fits the largest UDP payload.
const DefaultBufferSize = 64 * 1024

// Listener decodes datagrams and upserts them into a Tracker. It keeps no
// state of its own: every valid datagram is one Upsert.
type Listener struct {
	tracker *roster.Tracker
	log     *zap.Logger
	now     func() time.Time
	bufSize int
}

type Option func(*Listener)

// WithClock replaces time.Now as the source of arrival times.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) { l.now = now }
}

func WithBufferSize(n int) Option {
	return func(l *Listener) {
		if n > 0 {
			l.bufSize = n
		}
	}
}

func NewListener(t *roster.Tracker, log *zap.Logger, opts ...Option) *Listener {
	l := &Listener{
		tracker: t,
		log:     logging.OrNop(log).Named("ingress"),
		now:     time.Now,
		bufSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// JoinGroup binds the group's port and joins the multicast group addr
// (host:port) on the default interface.
func JoinGroup(addr string) (*net.UDPConn, error) {
	gaddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve multicast group %s: %w", addr, err)
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, gaddr)
	if err != nil {
		return nil, fmt.Errorf("join multicast group %s: %w", addr, err)
	}
	return conn, nil
}

// Serve reads datagrams from conn until ctx is done or conn is closed. It
// closes conn when ctx is done. Read errors other than closure are logged
// and the loop keeps going.
func (l *Listener) Serve(ctx context.Context, conn net.PacketConn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	l.log.Info("listening for announcements", zap.Stringer("addr", conn.LocalAddr()))

	buf := make([]byte, l.bufSize)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.log.Warn("read datagram", zap.Error(err))
			continue
		}
		l.Handle(buf[:n], src)
	}
}

// Handle processes one datagram. Invalid payloads are logged and dropped.
func (l *Listener) Handle(payload []byte, src net.Addr) {
	m, err := protocol.DecodeAnnouncement(payload)
	if err != nil {
		telemetry.RecordAnnouncement(false)
		l.log.Warn("dropping announcement",
			zap.Error(err),
			zap.Stringer("src", addrString{src}),
			zap.Int("bytes", len(payload)),
		)
		return
	}
	l.tracker.Upsert(m, l.now())
	telemetry.RecordAnnouncement(true)
	l.log.Debug("announcement",
		zap.String("id", m.ID),
		zap.String("instrument", m.Instrument),
		zap.Stringer("src", addrString{src}),
	)
}

type addrString struct{ net.Addr }

func (a addrString) String() string {
	if a.Addr == nil {
		return "unknown"
	}
	return a.Addr.String()
}
