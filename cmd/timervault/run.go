package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"

	"timervault/internal/config"
	"timervault/internal/metrics"
	"timervault/internal/services/timers"
	logx "timervault/pkg/logx"
)

var runCommand = cli.Command{
	Name:  "run",
	Usage: "run the timer daemon (recover, then fire timers as they expire)",
	Description: `Recovers all pending timers from the operation log, then
keeps firing them until interrupted. Fired timers are logged; register real
delivery by embedding the timers package instead.`,
	Action: runAction,
}

func runAction(cliCtx *cli.Context) error {
	cfgPath := cliCtx.GlobalString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logSvc, log := logx.New(cfg.Logx())
	defer logSvc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var reg *metrics.Registry
	var promReg *prometheus.Registry
	if cfg.Metrics.Enabled {
		promReg = prometheus.NewRegistry()
		reg = metrics.NewRegistry(promReg)
	}

	// The daemon's default delivery is a log line per fired timer.
	cb := timers.CallbackFunc(func(id uuid.UUID, payload string) {
		log.Info("timer delivered",
			logx.String("id", id.String()),
			logx.String("payload", payload))
	})

	svc, err := timers.Open(timers.Config{LogPath: cfg.LogPath, Metrics: reg}, log, cb)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc.Start(ctx)
	defer svc.Stop()

	// Recovery is done and the worker is armed: tell systemd we're ready.
	if ok, err := sdaemon.SdNotify(false, sdaemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify: ready")
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			log.Info("metrics endpoint listening", logx.String("addr", cfg.Metrics.Listen))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", logx.Err(err))
			}
		}()
	}

	// Hot-reload logging settings on config file changes.
	go func() {
		if err := config.Watch(ctx, cfgPath, log, func(next *config.Config) {
			logSvc.Apply(next.Logx())
		}); err != nil {
			log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	log.Info("timervault running",
		logx.String("oplog", cfg.LogPath),
		logx.Int("live", svc.CountLive()))

	<-ctx.Done()

	if metricsSrv != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = metricsSrv.Shutdown(shutCtx)
		shutCancel()
	}
	return nil
}
