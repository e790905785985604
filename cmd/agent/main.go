package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hr-agent/internal/agent"
	"hr-agent/internal/chat"
	"hr-agent/internal/config"
	"hr-agent/internal/events"
	"hr-agent/internal/leave"
	"hr-agent/internal/logger"
	"hr-agent/internal/metrics"
	"hr-agent/internal/server"
	"hr-agent/internal/session"
	"hr-agent/internal/storage"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hr-agent",
		Short:         "HR assistant with a staged reasoning reveal and a leave request form",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "hr-agent.yaml", "yaml config path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (console|json)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// services is everything a command needs, built from one config.
type services struct {
	cfg      config.Config
	log      *logger.Logger
	store    *storage.BoltStore
	leave    *leave.Service
	sessions *session.Manager
	bus      *events.InMemoryBus
	metrics  *metrics.Metrics
	chat     *chat.Orchestrator
}

type bootOptions struct {
	scheduler chat.Scheduler
	// withChat is false for commands that only read history.
	withChat bool
}

func bootstrap(opts bootOptions) (*services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(logLevel) != "" {
		cfg.LogLevel = logLevel
	}
	if strings.TrimSpace(logFormat) != "" {
		cfg.LogFormat = logFormat
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	rt := &services{
		cfg:      cfg,
		log:      log,
		store:    store,
		sessions: session.NewManager(store),
		bus:      events.NewInMemoryBus(cfg.EventHistory),
		metrics:  metrics.New(),
	}
	rt.leave = leave.NewService(store, leave.Options{
		Today:          cfg.Today,
		Calendar:       leave.Calendar{Weekend: cfg.Weekend, Holidays: cfg.Holidays},
		InitialBalance: cfg.Policy.InitialBalance,
		NotifyEmail:    cfg.Policy.NotifyEmail,
	})
	if !opts.withChat {
		return rt, nil
	}

	reasoner, err := agent.New(agent.Options{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.ResolveAPIKey(),
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.RequestTimeout,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Format:      cfg.LLM.ResponseFormat,
		Policy: agent.Policy{
			Locale:         cfg.Policy.Locale,
			Weekend:        cfg.Weekend,
			Holidays:       cfg.Holidays,
			InitialBalance: cfg.Policy.InitialBalance,
			NotifyEmail:    cfg.Policy.NotifyEmail,
		},
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	if cfg.ResolveAPIKey() == "" {
		log.Warnw("no API key configured; every turn will answer with the apology message", "provider", cfg.LLM.Provider)
	}

	rt.chat, err = chat.New(chat.Options{
		Reasoner: reasoner,
		Today:    cfg.Today,
		Form:     leave.DefaultForm(cfg.Form.Name, cfg.Form.LeaveType, cfg.Form.Reason, cfg.Today),
		Cadence: chat.Cadence{
			Plan:   cfg.Cadence.Plan,
			Act:    cfg.Cadence.Act,
			Notify: cfg.Cadence.Notify,
			Settle: cfg.Cadence.Settle,
		},
		Scheduler:    opts.scheduler,
		Bus:          rt.bus,
		Journal:      rt.sessions,
		Leave:        rt.leave,
		Logger:       log,
		Metrics:      rt.metrics,
		TranscriptID: session.NewID(),
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	log.Infow("hr agent ready",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"today", cfg.Today.String(),
		"storage", cfg.StoragePath,
		"transcript", rt.chat.TranscriptID(),
	)
	return rt, nil
}

func (rt *services) close() {
	if rt.chat != nil {
		rt.chat.Wait()
	}
	if err := rt.store.Close(); err != nil {
		rt.log.Warnw("close storage", "err", err)
	}
	_ = rt.log.Sync()
}

func clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
