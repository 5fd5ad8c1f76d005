package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crossvr-capture-go/internal/capture"
	"crossvr-capture-go/internal/config"
	"crossvr-capture-go/internal/server"
	"crossvr-capture-go/internal/session"
	"crossvr-capture-go/internal/simulator"
	"crossvr-capture-go/internal/source"
	"crossvr-capture-go/internal/trial"
)

func main() {
	// .env is optional; flags and the config file win over it.
	_ = godotenv.Load()

	def := config.Default()
	var (
		configPath  = flag.String("config", os.Getenv("CROSSVR_CONFIG"), "Path to YAML session config (optional)")
		port        = flag.Int("port", def.Port, "HTTP port for the operator surface")
		endpoint    = flag.String("endpoint", envOr("CROSSVR_ENDPOINT", def.Endpoint), "ZMQ endpoint of the VR runtime state stream")
		exportRoot  = flag.String("export-root", envOr("CROSSVR_EXPORT_ROOT", def.ExportRoot), "Directory trials are exported into")
		participant = flag.String("participant", "", "Participant identifier for the session manifest")
		rate        = flag.Float64("rate", def.SampleRate, "Sampling rate per channel in Hz")
		staleAfter  = flag.Duration("stale-after", def.StaleAfter, "Treat a source as unavailable after this silence")
		sim         = flag.Bool("sim", false, "Run against the built-in scenario simulator instead of the bridge")
		simRate     = flag.Float64("sim-rate", def.SimRate, "Simulator update rate in Hz")
		logEvery    = flag.Int("log-every", def.LogEvery, "Log every Nth bridge/sampler warning")
	)
	flag.Parse()

	cfg := def
	if *configPath != "" {
		fc, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg.Apply(fc)
	}

	// Without a config file the flag defaults already match cfg; with one,
	// only explicitly set flags override the file.
	noFile := *configPath == ""
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyIf := func(name string, apply func()) {
		if noFile || set[name] {
			apply()
		}
	}
	applyIf("port", func() { cfg.Port = *port })
	applyIf("endpoint", func() { cfg.Endpoint = *endpoint })
	applyIf("export-root", func() { cfg.ExportRoot = *exportRoot })
	applyIf("rate", func() { cfg.SampleRate = *rate })
	applyIf("stale-after", func() { cfg.StaleAfter = *staleAfter })
	applyIf("sim-rate", func() { cfg.SimRate = *simRate })
	applyIf("log-every", func() { cfg.LogEvery = *logEvery })
	if set["participant"] {
		cfg.Participant = *participant
	}
	if set["sim"] {
		cfg.Simulate = *sim
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fail fast on an unusable export root before any sampling begins.
	if _, err := trial.ScanMaxID(cfg.ExportRoot); err != nil {
		log.Fatalf("export root: %v", err)
	}

	store := source.NewStore(cfg.StaleAfter)
	if cfg.Simulate {
		log.Printf("running with scenario simulator at %g Hz", cfg.SimRate)
		go simulator.New(store).Run(ctx, cfg.SimRate)
	} else {
		log.Printf("connecting state bridge to %s", cfg.Endpoint)
		if err := source.RunBridge(ctx, cfg.Endpoint, store, cfg.LogEvery); err != nil {
			log.Fatalf("start bridge: %v", err)
		}
	}

	srcName := "bridge"
	srcEndpoint := cfg.Endpoint
	if cfg.Simulate {
		srcName = "simulator"
		srcEndpoint = ""
	}
	manifestPath, err := session.Write(cfg.ExportRoot, session.Manifest{
		Participant:  cfg.Participant,
		SampleRateHz: cfg.SampleRate,
		Source:       srcName,
		Endpoint:     srcEndpoint,
		StartedAt:    time.Now(),
	})
	if err != nil {
		log.Fatalf("session manifest: %v", err)
	}
	log.Printf("session manifest written to %s", manifestPath)

	recorder := trial.NewRecorder(cfg.ExportRoot)
	sampler := capture.NewSampler(recorder, store, capture.NewClock(), cfg.SampleRate, nil, cfg.LogEvery)
	go sampler.Run(ctx)
	log.Printf("sampling 3 channels at %g Hz into %s", cfg.SampleRate, cfg.ExportRoot)

	statusFn := func() map[string]any {
		status := recorder.Status()
		status["sampler"] = sampler.Metrics().Snapshot()
		status["sample_rate_hz"] = cfg.SampleRate
		status["simulate"] = cfg.Simulate
		return status
	}

	srv := server.New(cfg.Port, recorder, statusFn)
	log.Printf("operator surface on :%d (POST /api/commit, POST /api/discard)", cfg.Port)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
