package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imapurge/imapurge/internal/config"
	"github.com/imapurge/imapurge/internal/history"
	"github.com/imapurge/imapurge/internal/runtime"
)

type historyConfig struct {
	cfgPath string
	dbPath  string
	limit   int
	jsonOut string
	runID   string
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("imapurge-history failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() historyConfig {
	cfgPath := flag.String("config", "", "config file (default ~/.config/imapurge/config.yaml)")
	dbPath := flag.String("db", "", "sqlite history file (overrides config)")
	limit := flag.Int("limit", 20, "number of runs to show")
	jsonOut := flag.String("json", "", "write JSON report to path")
	runID := flag.String("run", "", "show a single run by ID")
	flag.Parse()

	return historyConfig{
		cfgPath: *cfgPath,
		dbPath:  *dbPath,
		limit:   *limit,
		jsonOut: *jsonOut,
		runID:   *runID,
	}
}

func run(cfg historyConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbPath := cfg.dbPath
	if dbPath == "" {
		fileCfg, err := loadConfig(cfg.cfgPath)
		if err != nil {
			return err
		}
		dbPath = fileCfg.History.Path
	}
	if dbPath == "" {
		return fmt.Errorf("no history database configured; pass -db or set history.path")
	}

	store, err := history.OpenSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("open history %s: %w", dbPath, err)
	}
	defer func() { _ = store.Close() }()

	var recs []*history.Record
	if cfg.runID != "" {
		rec, getErr := store.Get(ctx, cfg.runID)
		if getErr != nil {
			return fmt.Errorf("look up run: %w", getErr)
		}
		recs = []*history.Record{rec}
	} else {
		recs, err = store.Recent(ctx, cfg.limit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
	}

	if printErr := history.PrintHuman(recs, os.Stdout); printErr != nil {
		return fmt.Errorf("print report: %w", printErr)
	}
	if cfg.jsonOut == "" {
		return nil
	}
	if writeErr := history.WriteJSON(recs, cfg.jsonOut); writeErr != nil {
		return fmt.Errorf("write json: %w", writeErr)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
