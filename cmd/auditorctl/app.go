package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ryandielhenn/auditor/internal/logging"
	"github.com/ryandielhenn/auditor/pkg/auditor"
	"github.com/ryandielhenn/auditor/pkg/musician"
	"github.com/ryandielhenn/auditor/pkg/registry"
	"github.com/ryandielhenn/auditor/pkg/responder"
)

// Set via -ldflags.
var version = "dev"

// defaultQueryPort is used when an auditor address carries no port.
const defaultQueryPort = "2205"

var errNoAuditor = errors.New("no auditor address: pass --addr or --etcd")

func App() *cli.App {
	return &cli.App{
		Name:    "auditorctl",
		Usage:   "query auditors and play musicians",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output format: table, json, yaml",
				Value:   "table",
			},
			&cli.StringSliceFlag{
				Name:    "etcd",
				Usage:   "etcd endpoints used to discover auditors",
				EnvVars: []string{"AUDITOR_ETCD_ENDPOINTS"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "timeout for network calls",
				Value: 5 * time.Second,
			},
		},
		Commands: []*cli.Command{
			queryCommand(),
			auditorsCommand(),
			playCommand(),
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "list the musicians an auditor currently hears",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "auditor query address (host[:port], default port " + defaultQueryPort + ")",
				EnvVars: []string{"AUDITOR_ADDR"},
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			addr, err := resolveAddr(ctx, c)
			if err != nil {
				return err
			}
			musicians, err := responder.Fetch(ctx, addr)
			if err != nil {
				return err
			}
			f, err := newFormatter(c.String("output"))
			if err != nil {
				return err
			}
			return f.Musicians(c.App.Writer, musicians)
		},
	}
}

func auditorsCommand() *cli.Command {
	return &cli.Command{
		Name:  "auditors",
		Usage: "list auditors registered in etcd",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "keep printing changes"},
		},
		Action: func(c *cli.Context) error {
			endpoints := c.StringSlice("etcd")
			if len(endpoints) == 0 {
				return errors.New("--etcd is required")
			}
			f, err := newFormatter(c.String("output"))
			if err != nil {
				return err
			}
			cli3, err := registry.NewClient(endpoints)
			if err != nil {
				return err
			}
			defer cli3.Close()

			if c.Bool("watch") {
				ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				err := registry.WatchAuditors(ctx, cli3, func(as []registry.Auditor) {
					_ = f.Auditors(c.App.Writer, as)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()
			as, err := registry.ListAuditors(ctx, cli3)
			if err != nil {
				return err
			}
			return f.Auditors(c.App.Writer, as)
		},
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "announce a musician to the multicast group until interrupted",
		ArgsUsage: "<instrument>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "group",
				Usage: "multicast group (host:port)",
				Value: "239.255.22.5:9907",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "time between announcements",
				Value: musician.DefaultInterval,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected one instrument: %s", strings.Join(musician.Instruments(), ", "))
			}
			log, err := logging.New(logging.Config{Level: "info", Format: "console"})
			if err != nil {
				return err
			}
			defer log.Sync()

			m, err := musician.New(c.Args().First(), log)
			if err != nil {
				return err
			}
			m.Interval = c.Duration("interval")

			conn, err := net.Dial("udp4", c.String("group"))
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(c.App.Writer, "%s playing %s as %s\n", m.Instrument, m.Sound, m.ID)
			return m.Run(ctx, conn)
		},
	}
}

// resolveAddr prefers --addr, then the first auditor registered in etcd.
// Either way the result is a dialable host:port.
func resolveAddr(ctx context.Context, c *cli.Context) (string, error) {
	if addr := c.String("addr"); addr != "" {
		return auditor.NormalizeHostPort(addr, defaultQueryPort), nil
	}
	endpoints := c.StringSlice("etcd")
	if len(endpoints) == 0 {
		return "", errNoAuditor
	}
	cli3, err := registry.NewClient(endpoints)
	if err != nil {
		return "", err
	}
	defer cli3.Close()

	as, err := registry.ListAuditors(ctx, cli3)
	if err != nil {
		return "", err
	}
	if len(as) == 0 {
		return "", fmt.Errorf("%w (none registered in etcd)", errNoAuditor)
	}
	return auditor.NormalizeHostPort(as[0].Addr, defaultQueryPort), nil
}
