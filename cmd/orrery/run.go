package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/arlstone/orrery/internal/api"
	"github.com/arlstone/orrery/internal/config"
	"github.com/arlstone/orrery/internal/engine"
	"github.com/arlstone/orrery/internal/persistence"
	"github.com/arlstone/orrery/internal/system"
)

// loadSystem opens the database and builds the simulation, restoring
// saved state when present and seeding from the configuration file
// otherwise. The caller owns the returned database handle.
func loadSystem(configPath, dbPath string) (*engine.Simulation, *config.SystemConfig, *persistence.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := db.EnsureRunID(); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	slog.Info("database opened", "path", dbPath)

	if db.HasState() {
		slog.Info("found saved state, loading...")

		planets, err := db.LoadPlanets()
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("loading planets: %w", err)
		}
		transfers, err := db.LoadTransfers()
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("loading transfers: %w", err)
		}
		events, err := db.LoadEvents()
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("loading events: %w", err)
		}

		sim := engine.NewSimulation(planets, cfg.Baseline(), cfg.Tuning)
		for _, t := range transfers {
			sim.Ledger.Apply(t)
		}
		sim.Day = db.LastDay()
		sim.Score = db.LastScore()
		sim.Events = events
		sim.RefreshStats()

		slog.Info("state restored",
			"sim_date", engine.SimDate(sim.Day),
			"planets", len(planets),
			"transfers", len(transfers),
			"population", humanize.Comma(int64(sim.Stats.TotalPopulation)),
		)
		return sim, cfg, db, nil
	}

	slog.Info("no saved state, seeding fresh system", "name", cfg.Name)
	planets := engine.PlanetsFromStates(cfg.Planets)
	sim := engine.NewSimulation(planets, cfg.Baseline(), cfg.Tuning)

	// Save immediately so a restart resumes instead of reseeding.
	if err := db.SaveState(sim); err != nil {
		slog.Error("initial save failed", "error", err)
	}
	return sim, cfg, db, nil
}

func runServe(configPath, dbPath string, port int, speed float64) error {
	sim, cfg, db, err := loadSystem(configPath, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	run := engine.NewRunner(sim)
	if err := run.SetSpeed(speed); err != nil {
		return err
	}

	// Persist every sim-day; snapshot at each year boundary.
	run.OnDay = func(day uint64) {
		sim.Mu.Lock()
		defer sim.Mu.Unlock()
		if err := db.SaveState(sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
		if err := db.SaveStats(sim.Stats); err != nil {
			slog.Error("stats save failed", "error", err)
		}
	}
	run.OnYear = func(day uint64) {
		sim.Mu.Lock()
		err := db.Snapshot(sim)
		sim.Mu.Unlock()
		if err != nil {
			slog.Error("snapshot failed", "error", err)
			return
		}
		slog.Info("year closed", "sim_date", engine.SimDate(day))
	}

	adminKey := os.Getenv("ORRERY_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("ORRERY_ADMIN_KEY not set; admin POST endpoints are disabled")
	}

	srv := &api.Server{
		Sim:      sim,
		Run:      run,
		DB:       db,
		Name:     cfg.Name,
		Port:     port,
		AdminKey: adminKey,
	}
	srv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		run.Stop()
	}()

	fmt.Printf("\n%s is turning: %d worlds, %s people.\n",
		cfg.Name, len(sim.Planets), humanize.Comma(int64(sim.Stats.TotalPopulation)))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", port)
	if sim.Day > 0 {
		fmt.Printf("Resuming from %s\n", engine.SimDate(sim.Day))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	run.Run()

	slog.Info("final save...")
	sim.Mu.Lock()
	if err := db.SaveState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}
	sim.Mu.Unlock()

	fmt.Println("Simulation stopped. State saved.")
	return nil
}

func runAdvance(configPath, dbPath string, days int) error {
	sim, cfg, db, err := loadSystem(configPath, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	from := sim.Day
	alive, err := sim.Advance(days)
	if err != nil {
		return err
	}

	if err := db.SaveState(sim); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	if err := db.SaveStats(sim.Stats); err != nil {
		return fmt.Errorf("saving stats: %w", err)
	}
	if err := db.Snapshot(sim); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	printAdvanceReport(sim, cfg.Name, from, alive)
	return nil
}

func runGen(outPath, name string, planets int, seed int64) error {
	gen := system.DefaultGenConfig()
	gen.Planets = planets
	gen.Seed = seed

	states := system.Generate(gen)

	cfg := &config.SystemConfig{Name: name, Planets: states}
	cfg.ApplyDefaults()
	if err := config.Save(outPath, cfg); err != nil {
		return err
	}

	for _, line := range system.Describe(states) {
		fmt.Println(line)
	}
	fmt.Printf("\nWrote %d worlds to %s\n", len(states), outPath)
	return nil
}
