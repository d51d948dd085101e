// Package responder answers roster queries over TCP.
//
// Each accepted connection gets exactly one snapshot, written as a JSON
// array followed by "\r\n", and is then closed. Nothing is read from the
// client.
package responder

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/auditor/internal/logging"
	"github.com/ryandielhenn/auditor/internal/telemetry"
	"github.com/ryandielhenn/auditor/pkg/protocol"
	"github.com/ryandielhenn/auditor/pkg/roster"
)

// DefaultWriteTimeout bounds how long a slow client can hold a connection.
const DefaultWriteTimeout = 2 * time.Second

type Server struct {
	tracker *roster.Tracker
	log     *zap.Logger
	now     func() time.Time
	timeout time.Duration
	wg      sync.WaitGroup
}

type Option func(*Server)

// WithClock replaces time.Now as the snapshot time.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithWriteTimeout sets the per-connection write deadline. Zero disables it.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func NewServer(t *roster.Tracker, log *zap.Logger, opts ...Option) *Server {
	s := &Server{
		tracker: t,
		log:     logging.OrNop(log).Named("responder"),
		now:     time.Now,
		timeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections on ln until ctx is done, then closes ln and
// waits for in-flight responses to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.log.Info("serving roster queries", zap.Stringer("addr", ln.Addr()))

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay = acceptBackoff(delay)
			s.log.Warn("accept failed, retrying", zap.Error(err), zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Respond(conn)
		}()
	}
}

// acceptBackoff doubles the previous delay, starting at 5ms and capped at 1s.
func acceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	if prev *= 2; prev > time.Second {
		return time.Second
	}
	return prev
}

// Respond writes one snapshot to conn and closes it.
func (s *Server) Respond(conn net.Conn) {
	start := time.Now()
	defer conn.Close()

	if s.timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}

	musicians := s.tracker.Snapshot(s.now())
	telemetry.SetActiveMusicians(len(musicians))

	err := protocol.WriteRoster(conn, musicians)
	telemetry.RecordQuery(err, time.Since(start))
	if err != nil {
		s.log.Warn("write roster", zap.Error(err), zap.Stringer("remote", conn.RemoteAddr()))
		return
	}
	s.log.Debug("roster sent",
		zap.Int("musicians", len(musicians)),
		zap.Stringer("remote", conn.RemoteAddr()),
	)
}
