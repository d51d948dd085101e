// Package registry publishes auditors in etcd so clients can find a query
// address without configuration.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Prefix is the etcd key prefix under which auditors register.
const Prefix = "/auditor/nodes/"

// Auditor is one registered auditor.
type Auditor struct {
	ID   string `json:"id" yaml:"id"`
	Addr string `json:"addr" yaml:"addr"`
}

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// RequestTimeout bounds each etcd call made while registering.
const RequestTimeout = 5 * time.Second

// RegisterAuditor stores id -> addr under a lease of ttl seconds and keeps
// the lease alive until cancel is called or ctx is done. Revoke the lease
// after cancel to remove the key immediately.
func RegisterAuditor(ctx context.Context, cli *clientv3.Client, id, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	reqCtx, cancelReq := context.WithTimeout(ctx, RequestTimeout)
	defer cancelReq()

	lease, err := cli.Grant(reqCtx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("grant lease: %w", err)
	}
	if _, err := cli.Put(reqCtx, Prefix+id, addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("register %s: %w", id, err)
	}

	kaCtx, cancel := context.WithCancel(ctx)
	ch, err := cli.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("keepalive: %w", err)
	}
	// the channel must be drained or the client logs a full-queue warning
	go func() {
		for range ch {
		}
	}()

	return lease.ID, cancel, nil
}

// ListAuditors returns every registered auditor ordered by id.
func ListAuditors(ctx context.Context, cli *clientv3.Client) ([]Auditor, error) {
	resp, err := cli.Get(ctx, Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list auditors: %w", err)
	}
	out := make([]Auditor, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if a, ok := auditorFromKV(kv); ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// WatchAuditors calls fn with the full auditor set once at start and again
// after every change, until ctx is done.
func WatchAuditors(ctx context.Context, cli *clientv3.Client, fn func([]Auditor)) error {
	resp, err := cli.Get(ctx, Prefix, clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("list auditors: %w", err)
	}
	current := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if a, ok := auditorFromKV(kv); ok {
			current[a.ID] = a.Addr
		}
	}
	fn(sorted(current))

	wch := cli.Watch(ctx, Prefix, clientv3.WithPrefix(), clientv3.WithRev(resp.Header.Revision+1))
	for wr := range wch {
		if err := wr.Err(); err != nil {
			return fmt.Errorf("watch auditors: %w", err)
		}
		for _, ev := range wr.Events {
			applyEvent(current, ev.Type, ev.Kv)
		}
		fn(sorted(current))
	}
	return ctx.Err()
}

func applyEvent(current map[string]string, typ mvccpb.Event_EventType, kv *mvccpb.KeyValue) {
	id := strings.TrimPrefix(string(kv.Key), Prefix)
	switch typ {
	case mvccpb.PUT:
		if a, ok := auditorFromKV(kv); ok {
			current[a.ID] = a.Addr
		}
	case mvccpb.DELETE:
		delete(current, id)
	}
}

func auditorFromKV(kv *mvccpb.KeyValue) (Auditor, bool) {
	key := string(kv.Key)
	if !strings.HasPrefix(key, Prefix) {
		return Auditor{}, false
	}
	id := strings.TrimPrefix(key, Prefix)
	if id == "" || len(kv.Value) == 0 {
		return Auditor{}, false
	}
	return Auditor{ID: id, Addr: string(kv.Value)}, true
}

func sorted(m map[string]string) []Auditor {
	out := make([]Auditor, 0, len(m))
	for id, addr := range m {
		out = append(out, Auditor{ID: id, Addr: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
