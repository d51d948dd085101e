package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryandielhenn/auditor/pkg/musician"
	"github.com/ryandielhenn/auditor/pkg/responder"
)

func main() {
	group := flag.String("group", "239.255.22.5:9907", "multicast group musicians play to")
	addr := flag.String("addr", "localhost:2205", "auditor query address")
	n := flag.Int("n", 50, "simulated musicians")
	conc := flag.Int("c", 8, "concurrent queriers")
	dur := flag.Duration("d", 10*time.Second, "run time")
	interval := flag.Duration("i", musician.DefaultInterval, "announcement interval")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *dur)
	defer cancel()

	var (
		queries  atomic.Int64
		failures atomic.Int64
		lastSeen atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	instruments := musician.Instruments()
	for i := 0; i < *n; i++ {
		m, err := musician.New(instruments[i%len(instruments)], nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bench:", err)
			os.Exit(1)
		}
		m.Interval = *interval
		conn, err := net.Dial("udp4", *group)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bench:", err)
			os.Exit(1)
		}
		defer conn.Close()
		g.Go(func() error { return m.Run(gctx, conn) })
	}

	start := time.Now()
	for i := 0; i < *conc; i++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				qctx, qcancel := context.WithTimeout(gctx, 2*time.Second)
				got, err := responder.Fetch(qctx, *addr)
				qcancel()
				if err != nil {
					if gctx.Err() == nil {
						failures.Add(1)
						time.Sleep(50 * time.Millisecond)
					}
					continue
				}
				queries.Add(1)
				lastSeen.Store(int64(len(got)))
			}
			return nil
		})
	}

	_ = g.Wait()
	elapsed := time.Since(start)
	q := queries.Load()
	fmt.Printf("Completed %d queries in %s (%.2f q/s), %d failed, last roster had %d of %d musicians\n",
		q, elapsed.Truncate(time.Millisecond), float64(q)/elapsed.Seconds(), failures.Load(), lastSeen.Load(), *n)
}
