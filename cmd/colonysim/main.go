// Command colonysim runs the colony population and economy simulation.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/starcolony/internal/api"
	"github.com/talgya/starcolony/internal/catalog"
	"github.com/talgya/starcolony/internal/config"
	"github.com/talgya/starcolony/internal/engine"
	"github.com/talgya/starcolony/internal/metrics"
	"github.com/talgya/starcolony/internal/persistence"
)

func main() {
	var (
		configPath = flag.String("config", "", "run configuration (YAML); empty uses the built-in demo campaign")
		turns      = flag.Uint64("turns", 0, "stop after this turn (overrides config when > 0)")
		verbose    = flag.Bool("v", false, "debug logging")
		verify     = flag.Bool("verify", false, "verify the snapshot chain in the database and exit")
	)
	flag.Parse()

	setupLogging(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *turns > 0 {
		cfg.Turns = *turns
	}

	// ── Catalog ───────────────────────────────────────────────────────
	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "buildings", len(cat.BuildingTypes()), "digest", cat.Digest()[:12])

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create database directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	if *verify {
		if err := db.VerifyChain(); err != nil {
			slog.Error("snapshot chain invalid", "error", err)
			os.Exit(1)
		}
		snaps, _ := db.Snapshots()
		fmt.Printf("snapshot chain ok: %d snapshots\n", len(snaps))
		return
	}

	campaign, err := db.CampaignID()
	if err != nil {
		slog.Error("failed to read campaign id", "error", err)
		os.Exit(1)
	}

	// ── Simulation ────────────────────────────────────────────────────
	m := metrics.New()
	sim, err := engine.NewSimulation(cfg, cat, engine.WithMetrics(m))
	if err != nil {
		slog.Error("invalid campaign setup", "error", err)
		os.Exit(1)
	}

	var startTurn uint64
	if db.HasState() {
		slog.Info("found saved campaign, loading...", "campaign", campaign)
		startTurn, err = db.LastTurn()
		if err != nil {
			slog.Error("failed to read last turn", "error", err)
			os.Exit(1)
		}
		states, err := db.LoadColonies()
		if err != nil {
			slog.Error("failed to load colonies", "error", err)
			os.Exit(1)
		}
		if err := sim.Restore(startTurn, states); err != nil {
			slog.Error("failed to restore colonies", "error", err)
			os.Exit(1)
		}
		if digest, err := db.GetMeta(persistence.MetaCatalog); err == nil && digest != cat.Digest() {
			slog.Warn("catalog changed since the campaign was saved", "saved", digest[:min(12, len(digest))])
		}
		if seed, err := db.GetMeta(persistence.MetaSeed); err == nil && seed != strconv.FormatInt(cfg.Seed, 10) {
			slog.Warn("seed differs from the saved campaign", "saved", seed)
		}
	} else {
		slog.Info("no saved state found, founding colonies...", "campaign", campaign)
		if err := sim.Found(0); err != nil {
			slog.Error("failed to found colonies", "error", err)
			os.Exit(1)
		}
		if err := db.SaveColonies(0, sim.States()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}
	if err := db.SaveMeta(persistence.MetaSeed, strconv.FormatInt(cfg.Seed, 10)); err != nil {
		slog.Error("failed to save seed", "error", err)
	}
	if err := db.SaveMeta(persistence.MetaCatalog, cat.Digest()); err != nil {
		slog.Error("failed to save catalog digest", "error", err)
	}

	stats := sim.Stats()
	slog.Info("campaign ready",
		"campaign", campaign,
		"turn", startTurn,
		"empires", len(sim.Empires),
		"colonies", stats.Colonies,
		"population", humanize.Comma(int64(stats.Population)),
	)

	rec := &engine.Recorder{
		DB:            db,
		Campaign:      campaign,
		SaveEvery:     cfg.SaveEvery,
		SnapshotEvery: cfg.SnapshotEvery,
	}
	if cfg.TurnLogDir != "" {
		rec.Log = persistence.NewTurnLog(cfg.TurnLogDir, "turns-"+campaign[:8], 100)
		defer rec.Log.Close()
	}

	eng := engine.NewEngine()
	eng.Turn = startTurn
	eng.Interval = cfg.TurnInterval
	eng.MaxTurns = cfg.Turns
	eng.OnTurn = func(turn uint64) {
		results := sim.ProcessTurn(turn)
		if err := rec.Record(sim, turn, results); err != nil {
			slog.Error("turn save failed", "turn", turn, "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.APIAddr != "" {
		if cfg.AdminKey == "" {
			slog.Warn(config.AdminKeyEnv + " not set, admin POST endpoints will be disabled")
		}
		apiServer := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Metrics:  m,
			Addr:     cfg.APIAddr,
			AdminKey: cfg.AdminKey,
		}
		apiServer.Start()
		defer apiServer.Close()
		fmt.Printf("API: http://localhost%s/api/v1/status\n", cfg.APIAddr)
	}

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	if startTurn > 0 {
		fmt.Printf("Resuming campaign %s from turn %d\n", campaign, startTurn)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	if err := rec.Save(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}

	final := sim.Stats()
	fmt.Printf("Simulation stopped at turn %d: %s people in %d colonies. Campaign saved.\n",
		sim.CurrentTurn(), humanize.Comma(int64(final.Population)), final.Colonies)
}

// setupLogging installs a text handler on terminals and JSON otherwise.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
