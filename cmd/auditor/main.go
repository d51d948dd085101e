package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ryandielhenn/auditor/internal/config"
	"github.com/ryandielhenn/auditor/internal/logging"
	"github.com/ryandielhenn/auditor/internal/telemetry"
	"github.com/ryandielhenn/auditor/pkg/auditor"
	"github.com/ryandielhenn/auditor/pkg/ingress"
	"github.com/ryandielhenn/auditor/pkg/registry"
	"github.com/ryandielhenn/auditor/pkg/responder"
	"github.com/ryandielhenn/auditor/pkg/roster"
)

// Set via -ldflags.
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("AUDITOR_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "auditor: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. Load config and build the logger
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.With(zap.String("node", cfg.Node.ID))
	telemetry.SetBuildInfo(version, gitSHA)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. The roster shared by ingress and responder
	tracker := roster.New()

	// 3. Join the multicast group and open the query port
	log.Info("[Boot] joining multicast group", zap.String("group", cfg.Multicast.Address))
	udp, err := ingress.JoinGroup(cfg.Multicast.Address)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Query.Address)
	if err != nil {
		udp.Close()
		return fmt.Errorf("listen %s: %w", cfg.Query.Address, err)
	}

	listener := ingress.NewListener(tracker, log, ingress.WithBufferSize(cfg.Multicast.Buffer))
	server := responder.NewServer(tracker, log, responder.WithWriteTimeout(cfg.Query.Timeout))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Serve(gctx, udp) })
	g.Go(func() error { return server.Serve(gctx, ln) })

	a := auditor.New(tracker, cfg.Node.ID, auditor.AdvertiseHostPort(cfg.AdvertiseAddr(), cfg.Node.ID))

	// 4. Register with etcd when configured
	if len(cfg.Etcd.Endpoints) > 0 {
		cleanup, err := register(gctx, log, cfg.Etcd, a)
		if err != nil {
			log.Error("[Boot] etcd registration failed", zap.Error(err))
		} else {
			defer cleanup()
		}
	}

	// 5. Admin HTTP endpoints
	if cfg.HTTP.Address != "" {
		srv := &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           a.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("[Boot] admin http listening", zap.String("addr", cfg.HTTP.Address))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info("auditor running",
		zap.String("query", cfg.Query.Address),
		zap.String("advertise", a.Addr()),
		zap.String("version", version),
	)
	err = g.Wait()
	log.Info("auditor stopped", zap.Int("musicians", tracker.Len()))
	return err
}

func register(ctx context.Context, log *zap.Logger, cfg config.EtcdConfig, a *auditor.Auditor) (func(), error) {
	log.Info("[Boot] creating etcd client", zap.Strings("endpoints", cfg.Endpoints))
	cli, err := registry.NewClient(cfg.Endpoints)
	if err != nil {
		return nil, err
	}

	leaseID, stopKeepAlive, err := registry.RegisterAuditor(ctx, cli, a.ID(), a.Addr(), cfg.TTL)
	if err != nil {
		cli.Close()
		return nil, err
	}
	log.Info("[Boot] registered with etcd", zap.String("addr", a.Addr()), zap.Int64("lease", int64(leaseID)))

	return func() {
		stopKeepAlive()
		revokeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := cli.Revoke(revokeCtx, leaseID); err != nil {
			log.Warn("revoke etcd lease", zap.Error(err))
		}
		cli.Close()
	}, nil
}
