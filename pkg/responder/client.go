package responder

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ryandielhenn/auditor/pkg/protocol"
	"github.com/ryandielhenn/auditor/pkg/roster"
)

// maxResponse caps how much of a response Fetch will buffer.
const maxResponse = 8 << 20

// Fetch dials an auditor's query address and returns the active musicians.
func Fetch(ctx context.Context, addr string) ([]roster.Summary, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	}

	b, err := io.ReadAll(io.LimitReader(conn, maxResponse))
	if err != nil {
		return nil, fmt.Errorf("read roster from %s: %w", addr, err)
	}
	return protocol.DecodeRoster(b)
}
