package roster

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/ryandielhenn/auditor/pkg/liveness"
)

// Musician is one decoded announcement. Sound and ActiveSince are opaque
// JSON values kept exactly as the announcer sent them.
type Musician struct {
	ID          string
	Sound       json.RawMessage
	Instrument  string
	ActiveSince json.RawMessage
}

// Summary is the projection of a Musician handed out to queriers.
type Summary struct {
	ID          string          `json:"id"`
	Instrument  string          `json:"instrument"`
	ActiveSince json.RawMessage `json:"activeSince"`
}

type entry struct {
	musician Musician
	lastSeen time.Time
}

// Tracker holds the musicians heard recently, keyed by id.
//
// A single mutex guards the set; every Upsert and every Snapshot (pruning
// included) runs while holding it. Entries keep the order of their first
// announcement.
type Tracker struct {
	mu    sync.Mutex
	index map[string]*list.Element
	order *list.List
	alive liveness.Policy
}

func New() *Tracker {
	return &Tracker{
		index: make(map[string]*list.Element),
		order: list.New(),
		alive: liveness.IsAlive,
	}
}

// Upsert records an announcement that arrived at now. An empty id is
// ignored; the decoder is expected to have rejected it already.
func (t *Tracker) Upsert(m Musician, now time.Time) {
	if m.ID == "" {
		return
	}
	m.Sound = clone(m.Sound)
	m.ActiveSince = clone(m.ActiveSince)

	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.index[m.ID]; ok {
		e := el.Value.(*entry)
		e.musician = m
		e.lastSeen = now
		return
	}
	t.index[m.ID] = t.order.PushBack(&entry{musician: m, lastSeen: now})
}

// Snapshot drops every musician that is no longer alive at now and returns
// the rest. The removal is permanent. The result is never nil.
func (t *Tracker) Snapshot(now time.Time) []Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Summary, 0, len(t.index))
	for el := t.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if !t.alive(e.lastSeen, now) {
			t.removeElement(el)
		} else {
			out = append(out, Summary{
				ID:          e.musician.ID,
				Instrument:  e.musician.Instrument,
				ActiveSince: clone(e.musician.ActiveSince),
			})
		}
		el = next
	}
	return out
}

// Len reports the number of tracked entries without pruning.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.index)
}

// LastSeen returns the arrival time of the latest announcement for id.
func (t *Tracker) LastSeen(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if el, ok := t.index[id]; ok {
		return el.Value.(*entry).lastSeen, true
	}
	return time.Time{}, false
}

func (t *Tracker) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(t.index, e.musician.ID)
	t.order.Remove(el)
}

func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}
