// Package daemon implements the serve lifecycle: capture, distribution and
// the subscriber endpoints.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/netscope/internal/broadcast"
	"firestige.xyz/netscope/internal/capture"
	"firestige.xyz/netscope/internal/config"
	"firestige.xyz/netscope/internal/log"
	"firestige.xyz/netscope/internal/metrics"
	"firestige.xyz/netscope/internal/pipeline"
	"firestige.xyz/netscope/internal/server"
	"firestige.xyz/netscope/internal/sink"
	"firestige.xyz/netscope/internal/sink/console"
	"firestige.xyz/netscope/internal/sink/kafka"
)

const statsInterval = 30 * time.Second

// Options carries process-level settings that are not part of the config file.
type Options struct {
	ConfigPath string    // Used by Reload; empty disables reloading
	PIDFile    string    // Optional
	Stdout     io.Writer // Console sink output, default os.Stdout
}

// Daemon manages the netscope serve process lifecycle.
type Daemon struct {
	config *config.Config
	opts   Options

	// Core components
	dist          *broadcast.Distributor
	sinks         *sink.Manager
	server        *server.Server
	source        capture.Source
	pipeline      *pipeline.Pipeline
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	captureStop  context.CancelFunc
	captureDone  chan error
	shutdownChan chan struct{}
	sigChan      chan os.Signal
	stopOnce     sync.Once
}

// New creates a daemon for a validated configuration.
func New(cfg *config.Config, opts Options) *Daemon {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	d := &Daemon{
		config:       cfg,
		opts:         opts,
		captureDone:  make(chan error, 1),
		shutdownChan: make(chan struct{}, 1),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start initializes and starts all components. On error every component that
// was already started is stopped again.
func (d *Daemon) Start() (err error) {
	defer func() {
		if err != nil {
			d.Stop()
		}
	}()

	// 1. Initialize logging system
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := log.GetLogger()
	logger.WithFields(map[string]interface{}{
		"config":  d.opts.ConfigPath,
		"capture": d.config.Capture.Type,
		"listen":  d.config.Server.Listen,
	}).Info("starting netscope")

	// 2. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 3. Start metrics server
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 4. Distributor and local sinks
	d.dist = broadcast.New(broadcast.Options{Buffer: d.config.Server.SendBuffer})
	if err := d.startSinks(); err != nil {
		return err
	}

	// 5. Subscriber endpoint
	d.server = server.New(server.ConfigFrom(d.config.Server), d.dist)
	if err := d.server.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start subscriber server: %w", err)
	}

	// 6. Frame source; an unusable device is fatal here
	opts, err := capture.OptionsFromConfig(d.config.Capture)
	if err != nil {
		return fmt.Errorf("invalid capture options: %w", err)
	}
	d.source, err = capture.Open(d.ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open capture source: %w", err)
	}

	// 7. Pipeline
	d.pipeline = pipeline.NewBuilder().
		WithSource(d.source).
		WithPublisher(d.dist).
		Build()

	captureCtx, stop := context.WithCancel(d.ctx)
	d.captureStop = stop
	go func() {
		d.captureDone <- d.pipeline.Run(captureCtx)
	}()
	go d.reportStats(captureCtx)

	logger.WithField("source", d.source.Name()).Info("netscope started")
	return nil
}

// Stop performs graceful shutdown. Safe to call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	logger := log.GetLogger()
	logger.Info("initiating graceful shutdown")

	// 1. Stop capture and wait for the in-flight frame
	if d.captureStop != nil {
		d.captureStop()
		select {
		case <-d.captureDone:
		case <-time.After(5 * time.Second):
			logger.Warn("capture did not stop in time")
		}
	}
	if d.source != nil {
		if err := d.source.Close(); err != nil {
			logger.WithError(err).Error("error closing capture source")
		}
	}

	// 2. Close the distributor; subscribers see their streams end
	if d.dist != nil {
		d.dist.Close()
	}

	// 3. Drain sinks
	if d.sinks != nil {
		if err := d.sinks.Stop(); err != nil {
			logger.WithError(err).Error("error stopping sinks")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 4. Stop subscriber server
	if d.server != nil {
		if err := d.server.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("error stopping subscriber server")
		}
	}

	// 5. Stop metrics server
	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("error stopping metrics server")
		}
	}

	// 6. Cancel context to signal all goroutines
	d.cancel()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	if err := d.removePIDFile(); err != nil {
		logger.WithError(err).Error("error removing PID file")
	}

	if d.pipeline != nil {
		st := d.pipeline.Stats()
		logger.WithFields(map[string]interface{}{
			"received":  st.Received,
			"published": st.Published,
			"dropped":   st.Dropped(),
		}).Info("netscope stopped")
	}
}

// Run blocks until a shutdown signal, TriggerShutdown, or the end of the
// capture source. SIGHUP reloads the log configuration.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	logger := log.GetLogger()
	logger.Info("running, waiting for signals")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				logger.WithField("signal", sig.String()).Info("received shutdown signal")
				d.Stop()
				return nil

			case syscall.SIGHUP:
				if err := d.Reload(); err != nil {
					logger.WithError(err).Error("failed to reload config")
				}
			}

		case err := <-d.captureDone:
			// Consumed here, so Stop must not wait for it again.
			d.captureStop = nil
			d.Stop()
			if err != nil {
				return err
			}
			logger.Info("capture source finished")
			return nil

		case <-d.shutdownChan:
			logger.Info("shutdown requested")
			d.Stop()
			return nil

		case <-d.ctx.Done():
			d.Stop()
			return d.ctx.Err()
		}
	}
}

// TriggerShutdown requests a graceful stop from another goroutine.
func (d *Daemon) TriggerShutdown() {
	select {
	case d.shutdownChan <- struct{}{}:
	default:
	}
}

// Addr returns the bound subscriber address once started.
func (d *Daemon) Addr() string {
	if d.server == nil {
		return d.config.Server.Listen
	}
	return d.server.Addr()
}

// Reload re-reads the config file. Only the log section is hot-reloadable;
// changes to other sections are reported as requiring a restart.
func (d *Daemon) Reload() error {
	if d.opts.ConfigPath == "" {
		return errors.New("no config file to reload")
	}
	logger := log.GetLogger()
	logger.WithField("path", d.opts.ConfigPath).Info("reloading configuration")

	newConfig, err := config.Load(d.opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	var requiresRestart []string
	if newConfig.Capture != d.config.Capture {
		requiresRestart = append(requiresRestart, "capture")
	}
	if newConfig.Server != d.config.Server {
		requiresRestart = append(requiresRestart, "server")
	}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}

	d.config.Log = newConfig.Log
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"hot_reloaded":     []string{"log"},
		"requires_restart": requiresRestart,
	}).Info("configuration reloaded")
	return nil
}

func (d *Daemon) initLogging() error {
	if err := log.Init(d.config.Log); err != nil {
		return err
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"level":  d.config.Log.Level,
		"format": d.config.Log.Format,
	}).Debug("logging initialized")
	return nil
}

func (d *Daemon) startSinks() error {
	d.sinks = sink.NewManager(d.dist)

	if c := d.config.Sinks.Console; c.Enabled {
		s, err := console.New(c, d.opts.Stdout)
		if err != nil {
			return fmt.Errorf("failed to create console sink: %w", err)
		}
		if err := d.sinks.Add(s, sink.Options{Buffer: c.Buffer}); err != nil {
			return err
		}
	}

	if k := d.config.Sinks.Kafka; k.Enabled {
		s, err := kafka.New(k)
		if err != nil {
			return fmt.Errorf("failed to create kafka sink: %w", err)
		}
		if err := d.sinks.Add(s, sink.Options{Buffer: k.Buffer, FlushInterval: k.BatchTimeoutDuration()}); err != nil {
			return err
		}
	}

	d.sinks.Start(d.ctx)
	return nil
}

func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		log.GetLogger().Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	return d.metricsServer.Start(d.ctx)
}

// reportStats periodically logs source counters and exports kernel drops.
func (d *Daemon) reportStats(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := d.source.Stats()
			if err != nil {
				continue
			}
			ps := d.pipeline.Stats()
			ds := d.dist.Stats()
			log.GetLogger().WithFields(map[string]interface{}{
				"captured":       st.Received,
				"kernel_dropped": st.Dropped,
				"if_dropped":     st.IfDropped,
				"published":      ps.Published,
				"decode_dropped": ps.Dropped(),
				"subscribers":    ds.Subscribers,
				"slow_dropped":   ds.Dropped,
			}).Info("capture statistics")
		}
	}
}

func (d *Daemon) writePIDFile() error {
	if d.opts.PIDFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")
	if err := os.WriteFile(d.opts.PIDFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.opts.PIDFile, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{"path": d.opts.PIDFile, "pid": pid}).Debug("PID file written")
	return nil
}

func (d *Daemon) removePIDFile() error {
	if d.opts.PIDFile == "" {
		return nil
	}
	if err := os.Remove(d.opts.PIDFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.opts.PIDFile, err)
	}
	return nil
}
