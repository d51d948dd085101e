// Package auditor ties a roster to its identity and exposes the admin HTTP
// endpoints.
package auditor

import (
	"time"

	"github.com/ryandielhenn/auditor/pkg/roster"
)

type Auditor struct {
	roster  *roster.Tracker
	id      string
	addr    string
	started time.Time
	now     func() time.Time
}

// New returns an auditor named id whose query endpoint is addr.
func New(t *roster.Tracker, id, addr string) *Auditor {
	return &Auditor{
		roster:  t,
		id:      id,
		addr:    addr,
		started: time.Now(),
		now:     time.Now,
	}
}

func (a *Auditor) ID() string {
	return a.id
}

func (a *Auditor) Addr() string {
	return a.addr
}

func (a *Auditor) Roster() *roster.Tracker {
	return a.roster
}
