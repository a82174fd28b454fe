package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/imapurge/imapurge/internal/audit"
	"github.com/imapurge/imapurge/internal/config"
	"github.com/imapurge/imapurge/internal/confirm"
	"github.com/imapurge/imapurge/internal/credential"
	"github.com/imapurge/imapurge/internal/history"
	"github.com/imapurge/imapurge/internal/mailbox"
	"github.com/imapurge/imapurge/internal/purge"
	"github.com/imapurge/imapurge/internal/rate"
	"github.com/imapurge/imapurge/internal/runtime"
)

type purgeConfig struct {
	cfgPath      string
	beforeDate   string
	afterDate    string
	maxDelete    int
	commit       bool
	confirm      bool
	output       string
	mbox         string
	pageSize     int
	rps          float64
	historyDB    string
	savePassword bool
	verbose      bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("imapurge failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() purgeConfig {
	cfgPath := flag.String("config", "", "config file (default ~/.config/imapurge/config.yaml)")
	beforeDate := flag.String("before-date", "", "delete messages sent on or before this date, YYYY-MM-DD (required)")
	afterDate := flag.String("after-date", "", "delete messages sent on or after this date (default one year before -before-date)")
	maxDelete := flag.Int("max-delete", 1000, "most messages one run may delete")
	commit := flag.Bool("commit", true, "expunge marked messages when the run finishes")
	confirmFlag := flag.Bool("confirm", false, "prompt before destructive steps")
	output := flag.String("output", "", "append the audit log to this file instead of stdout")
	mbox := flag.String("mailbox", "", "mailbox to purge (overrides config)")
	pageSize := flag.Int("page-size", purge.DefaultPageCap, "search results one session handles before reconnecting")
	rps := flag.Float64("rps", 0, "max IMAP commands per second (0 = unlimited)")
	historyDB := flag.String("history-db", "", "sqlite file for run history (overrides config)")
	savePassword := flag.Bool("save-password", false, "store a prompted password in the OS keyring")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	return purgeConfig{
		cfgPath:      *cfgPath,
		beforeDate:   *beforeDate,
		afterDate:    *afterDate,
		maxDelete:    *maxDelete,
		commit:       *commit,
		confirm:      *confirmFlag,
		output:       *output,
		mbox:         *mbox,
		pageSize:     *pageSize,
		rps:          *rps,
		historyDB:    *historyDB,
		savePassword: *savePassword,
		verbose:      *verbose,
	}
}

func run(cfg purgeConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()
	if cfg.verbose {
		logger = runtime.VerboseLogger()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	fileCfg, err := loadConfig(cfg.cfgPath)
	if err != nil {
		return err
	}
	if cfg.mbox != "" {
		fileCfg.Mailbox = cfg.mbox
	}
	if err := fileCfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if cfg.pageSize < 1 {
		return fmt.Errorf("page-size must be at least 1, got %d", cfg.pageSize)
	}

	rng, err := parseDates(cfg.beforeDate, cfg.afterDate)
	if err != nil {
		return err
	}

	password := fileCfg.Auth.Password
	source := "config"
	if password == "" {
		password, source, err = credential.NewResolver().Resolve(fileCfg.Auth.Username, fileCfg.Server.Host)
		if err != nil {
			return fmt.Errorf("resolve password: %w", err)
		}
	}
	logger.Debug("credentials resolved", "user", fileCfg.Auth.Username, "source", source)
	if cfg.savePassword && source == "prompt" {
		store := &credential.Store{}
		key := credential.Key(fileCfg.Auth.Username, fileCfg.Server.Host)
		if saveErr := store.Set(key, password); saveErr != nil {
			logger.Warn("store password in keyring", "key", key, "error", saveErr)
		} else {
			logger.Info("password stored in keyring", "key", key)
		}
	}

	auditLog := audit.NewLog(nil)
	if cfg.output != "" {
		auditLog, err = audit.Open(cfg.output)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer func() {
			if cerr := auditLog.Close(); cerr != nil {
				logger.Warn("close audit log", "error", cerr)
			}
		}()
	}

	provider := runtime.NewIMAPProvider(fileCfg, password, logger)
	svc := purge.NewService(provider, rate.PerSecond(cfg.rps), auditLog, logger)
	svc.PageCap = cfg.pageSize
	svc.Confirm = confirm.NewPrompter()

	spec := purge.Spec{
		Range:     rng,
		MaxDelete: cfg.maxDelete,
		Commit:    cfg.commit,
		Confirm:   cfg.confirm,
		Host:      fileCfg.Server.Host,
		Mailbox:   fileCfg.Mailbox,
	}

	runID := uuid.NewString()
	rep, runErr := svc.Run(ctx, spec)
	recordRun(logger, historyPath(cfg, fileCfg), runID, spec, rep, runErr)

	if runErr != nil {
		if errors.Is(runErr, purge.ErrCancelled) {
			logger.Info("run cancelled", "run_id", runID)
			return nil
		}
		return fmt.Errorf("run purge: %w", runErr)
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

// parseDates builds the deletion window. The before date is normalized to the
// end of its day so the whole day is covered; a missing after date defaults
// to one year earlier.
func parseDates(beforeStr, afterStr string) (mailbox.Range, error) {
	if beforeStr == "" {
		return mailbox.Range{}, errors.New("flag -before-date is required")
	}
	before, err := time.Parse(mailbox.DateFormat, beforeStr)
	if err != nil {
		return mailbox.Range{}, fmt.Errorf("parse before-date: %w", err)
	}
	rng := mailbox.Range{Before: mailbox.EndOfDay(before)}
	if afterStr == "" {
		rng.After = before.AddDate(-1, 0, 0)
		return rng, nil
	}
	after, err := time.Parse(mailbox.DateFormat, afterStr)
	if err != nil {
		return mailbox.Range{}, fmt.Errorf("parse after-date: %w", err)
	}
	rng.After = after
	return rng, nil
}

func historyPath(cfg purgeConfig, fileCfg *config.Config) string {
	if cfg.historyDB != "" {
		return cfg.historyDB
	}
	return fileCfg.History.Path
}

// recordRun persists the run outcome. History is best-effort bookkeeping: a
// storage failure is logged and never turns a finished run into a failed one.
func recordRun(logger *slog.Logger, dbPath, runID string, spec purge.Spec, rep purge.Report, runErr error) {
	if dbPath == "" {
		return
	}
	store, err := history.OpenSQLite(dbPath)
	if err != nil {
		logger.Warn("history unavailable", "path", dbPath, "error", err)
		return
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("close history store", "error", cerr)
		}
	}()

	outcome := history.OutcomeCompleted
	switch {
	case errors.Is(runErr, purge.ErrCancelled):
		outcome = history.OutcomeCancelled
	case runErr != nil:
		outcome = history.OutcomeFailed
	}
	rec := &history.Record{
		RunID:      runID,
		Host:       spec.Host,
		Mailbox:    spec.Mailbox,
		After:      spec.Range.After,
		Before:     spec.Range.Before,
		MaxDelete:  spec.MaxDelete,
		Read:       rep.Read,
		Deleted:    rep.Deleted,
		Errors:     rep.Errors,
		Restarts:   rep.Restarts,
		Pages:      rep.Pages,
		Expunged:   rep.Expunged,
		Committed:  rep.Committed,
		Outcome:    outcome,
		StartedAt:  rep.Started,
		FinishedAt: rep.Finished,
	}
	// A fresh context: the run's own context may already be canceled, and
	// an interrupted run is exactly the one worth recording.
	if err := store.Save(context.Background(), rec); err != nil {
		logger.Warn("record run history", "run_id", runID, "error", err)
		return
	}
	logger.Debug("run recorded", "run_id", runID, "outcome", outcome)
}
