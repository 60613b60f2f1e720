package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/observability"
	"github.com/signalsfoundry/mobility-simulator/internal/scenario"
	"github.com/signalsfoundry/mobility-simulator/internal/trace"
)

// demoScenario runs when no scenario file is given.
const demoScenario = `
name: demo
seed: 1
run: 1
duration: 60s
bounds: "0|100|0|100|0|100"
obstacles:
  - box: "40|60|40|60|0|30"
groups:
  - name: rw
    count: 2
    policy: random-walk
  - name: rd
    count: 2
    policy: random-direction
    params:
      bounds: "0|100|0|100|0|100"
  - name: gm
    count: 2
    policy: gauss-markov
    params:
      bounds: "0|100|0|100|0|100"
      alpha: 0.75
`

type options struct {
	scenarioPath string
	duration     time.Duration
	run          uint64
	tracePath    string
	metricsAddr  string
	realtime     bool
	tick         time.Duration
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.StringVar(&opts.scenarioPath, "scenario", "", "path to a YAML scenario (built-in demo when empty)")
	fs.DurationVar(&opts.duration, "duration", 0, "simulated duration (defaults to the scenario duration)")
	fs.Uint64Var(&opts.run, "run", 0, "replication number overriding the scenario run (0 keeps it)")
	fs.StringVar(&opts.tracePath, "trace", "", "write course changes as CSV to this path (- for stdout)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	fs.BoolVar(&opts.realtime, "realtime", false, "advance simulated time with the wall clock")
	fs.DurationVar(&opts.tick, "tick", time.Second, "tick interval in real-time mode")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.duration < 0 {
		return opts, fmt.Errorf("duration must not be negative, got %v", opts.duration)
	}
	if opts.realtime && opts.tick <= 0 {
		return opts, fmt.Errorf("tick must be positive, got %v", opts.tick)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	if err := run(ctx, opts, os.Stdout, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "simulation failed", logging.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer, base logging.Logger) error {
	ctx, log := logging.WithRunLogger(ctx, base)

	f, err := loadScenario(opts.scenarioPath)
	if err != nil {
		return err
	}
	if opts.run != 0 {
		f.Run = opts.run
	}
	duration := opts.duration
	if duration == 0 {
		duration = f.Duration
	}
	if duration == 0 {
		duration = time.Minute
	}

	buildOpts := []scenario.Option{scenario.WithLogger(log)}
	var metricsSrv *http.Server
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		buildOpts = append(buildOpts, scenario.WithRegisterer(reg))
		metricsSrv = serveMetrics(opts.metricsAddr, reg, log)
	}
	defer func() {
		if metricsSrv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	s, err := scenario.Build(ctx, f, buildOpts...)
	if err != nil {
		return err
	}

	var csvOut *trace.CSVWriter
	if opts.tracePath != "" {
		w, closeFn, err := openTrace(opts.tracePath, stdout)
		if err != nil {
			return err
		}
		defer closeFn()
		csvOut = trace.NewCSVWriter(w, s.Clock.Now())
		defer csvOut.Attach(s.KB)()
	}

	log.Info(ctx, "starting simulation",
		logging.String("scenario", f.Name),
		logging.Int("nodes", len(s.Policies)),
		logging.Duration("duration", duration),
		logging.Bool("realtime", opts.realtime),
	)
	if opts.realtime {
		err = s.RunRealtime(ctx, duration, opts.tick)
	} else {
		err = s.Run(ctx, duration)
	}

	if csvOut != nil {
		if ferr := csvOut.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	if err != nil {
		return err
	}
	if opts.tracePath != "-" {
		printSummary(stdout, s)
	}
	return nil
}

func loadScenario(path string) (*scenario.File, error) {
	if path == "" {
		return scenario.Load(strings.NewReader(demoScenario))
	}
	return scenario.LoadFile(path)
}

func openTrace(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "-" {
		return stdout, func() {}, nil
	}
	fh, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace file: %w", err)
	}
	return fh, func() { _ = fh.Close() }, nil
}

func printSummary(w io.Writer, s *scenario.Simulation) {
	fmt.Fprintf(w, "Simulated %s of %q\n", s.Clock.Elapsed(), s.Name)
	for _, n := range s.Nodes() {
		fmt.Fprintf(w, "  %-24s %-16s pos=(%8.2f, %8.2f, %8.2f) vel=(%6.2f, %6.2f, %6.2f) changes=%d\n",
			n.ID, n.Policy,
			n.Position.X, n.Position.Y, n.Position.Z,
			n.Velocity.X, n.Velocity.Y, n.Velocity.Z,
			n.CourseChanges,
		)
	}
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
