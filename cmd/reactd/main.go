// Command reactd runs a scheduled hot stream of ticks, fans each tick out to
// a react pipeline on a shared worker pool and, when enabled, serves the
// stream over the HTTP gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kbukum/reactkit/bootstrap"
	"github.com/kbukum/reactkit/config"
	"github.com/kbukum/reactkit/executor"
	"github.com/kbukum/reactkit/hotstream"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/observability"
	"github.com/kbukum/reactkit/queue"
	"github.com/kbukum/reactkit/schedule"
	"github.com/kbukum/reactkit/sse"
	"github.com/kbukum/reactkit/version"
)

const serviceName = "reactd"

func main() {
	var (
		configFile  = flag.String("config", "", "path to config.yml")
		envFile     = flag.String("env", "", "path to .env")
		showVersion = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Short())
		return
	}

	if err := run(*configFile, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(configFile, envFile string) error {
	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	cfg, err := config.Load(serviceName, opts...)
	if err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version.Short()
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()

	metrics, err := setupTelemetry(ctx, app)
	if err != nil {
		return err
	}

	pool, err := executor.NewPool(executor.PoolConfig{
		Name:      "workers",
		Workers:   cfg.Executor.Workers,
		MaxQueued: cfg.Executor.MaxQueued,
		Logger:    app.Logger,
	})
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(pool); err != nil {
		return err
	}
	logger.ComponentRegistryInstance.RegisterExecutor(pool.Name(), cfg.Executor.Workers, cfg.Executor.MaxQueued)

	// Hot stream loops hold their goroutine for the stream's lifetime, so
	// they run on their own executor rather than a pool worker.
	loops := executor.NewDedicated("stream-loops")
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = loops.Shutdown(sctx)
	}()

	ticks, err := startTicks(cfg, loops, app.Logger, metrics)
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(hotstream.Component(ticks)); err != nil {
		return err
	}

	var gateway *sse.Gateway
	if cfg.HTTP.Enabled {
		gateway = sse.NewGateway(sse.Config{
			Addr:         cfg.HTTP.Addr,
			MaxClients:   cfg.HTTP.MaxClients,
			FeedCapacity: cfg.Stream.QueueCapacity,
		},
			sse.WithLogger(app.Logger),
			sse.WithMetrics(metrics),
			sse.WithHealth(cfg.Name, cfg.Version, app.Components),
		)
		if err := sse.Publish[Tick](gateway, ticks, nil); err != nil {
			return err
		}
		if err := app.RegisterComponent(gateway); err != nil {
			return err
		}
		for _, r := range gateway.Routes() {
			logger.ComponentRegistryInstance.RegisterHandler(r.Method, r.Path, r.Handler)
		}
	}

	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*config.Config]) error {
		conn, err := ticks.Connect()
		if err != nil {
			return err
		}
		w := &windowWorker{
			exec:     pool,
			log:      a.Logger.WithComponent("window"),
			metrics:  metrics,
			interval: a.Cfg.Stream.ConsumeInterval,
		}
		w.start(conn)
		a.OnStop(func(context.Context) error {
			conn.Disconnect()
			w.wait()
			return nil
		})
		return nil
	})
	app.OnReady(func(context.Context) error {
		logger.ComponentRegistryInstance.LogSummary(app.Logger)
		return nil
	})

	return app.Run(ctx)
}

func startTicks(cfg *config.Config, exec executor.Executor, log *logger.Logger, metrics *observability.Metrics) (*hotstream.Pausable[Tick], error) {
	s := cfg.Stream.Schedule
	spec, err := schedule.Parse(s.Kind, s.Interval, s.Cron)
	if err != nil {
		return nil, err
	}
	policy, err := queue.ParsePolicy(cfg.Stream.Overflow)
	if err != nil {
		return nil, err
	}

	h, err := hotstream.StartPausable(tickSource(), exec,
		hotstream.WithName("ticks"),
		hotstream.WithSchedule(spec),
		hotstream.WithQueueCapacity(cfg.Stream.QueueCapacity),
		hotstream.WithOverflow(policy),
		hotstream.WithLogger(log),
		hotstream.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	logger.ComponentRegistryInstance.RegisterStream(h.Name(), spec.String(), policy.String(), cfg.Stream.QueueCapacity)
	return h, nil
}

// setupTelemetry installs the OTLP exporters that are enabled and returns
// the instruments, or nil when metrics are off.
func setupTelemetry(ctx context.Context, app *bootstrap.App[*config.Config]) (*observability.Metrics, error) {
	cfg := app.Cfg
	if cfg.Tracing.Enabled {
		tc := observability.DefaultTracerConfig(cfg.Name)
		tc.ServiceVersion, tc.Environment = cfg.Version, cfg.Environment
		tc.Endpoint, tc.Insecure, tc.SampleRate = cfg.Tracing.Endpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRate
		tp, err := observability.InitTracer(ctx, &tc)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		app.OnStop(tp.Shutdown)
	}

	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	mc := observability.DefaultMeterConfig(cfg.Name)
	mc.ServiceVersion, mc.Environment = cfg.Version, cfg.Environment
	mc.Endpoint, mc.Insecure, mc.Interval = cfg.Metrics.Endpoint, cfg.Metrics.Insecure, cfg.Metrics.Interval
	mp, err := observability.InitMeter(ctx, &mc)
	if err != nil {
		return nil, fmt.Errorf("init meter: %w", err)
	}
	app.OnStop(mp.Shutdown)

	metrics, err := observability.NewMetrics(observability.Meter("reactkit"))
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return metrics, nil
}
