package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/greenforestpath/focuslock/internal/config"
	"github.com/greenforestpath/focuslock/internal/interaction"
	"github.com/greenforestpath/focuslock/internal/queue"
	"github.com/greenforestpath/focuslock/internal/reward"
	"github.com/greenforestpath/focuslock/internal/surface"
	"github.com/greenforestpath/focuslock/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interaction orchestrator with the overlay TUI",
	Long: `Start the orchestrator and the overlay TUI, enqueueing a new
interaction on every trigger interval.

Examples:
  focuslock run
  focuslock run --once lock --strict
  focuslock run --trigger 5m
  focuslock run --layout ./displays.yaml --log-file ./focuslock.log`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("config", "", "config file (default: XDG config dir)")
	runCmd.Flags().String("layout", "", "display layout file (overrides config)")
	runCmd.Flags().String("log-file", "", "write structured logs to this file")
	runCmd.Flags().Duration("trigger", 0, "trigger interval (overrides config)")
	runCmd.Flags().Bool("strict", false, "strict mode for triggered interactions")
	runCmd.Flags().String("once", "", "run a single interaction (lock or guess) and exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	layoutPath, _ := cmd.Flags().GetString("layout")
	logFile, _ := cmd.Flags().GetString("log-file")
	trigger, _ := cmd.Flags().GetDuration("trigger")
	strict, _ := cmd.Flags().GetBool("strict")
	once, _ := cmd.Flags().GetString("once")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if layoutPath != "" {
		cfg.LayoutPath = layoutPath
	}
	if trigger > 0 {
		cfg.TriggerInterval = config.Duration(trigger)
	}
	if strict {
		cfg.StrictDefault = true
	}

	var onceKind interaction.Kind
	if once != "" {
		k, err := parseKind(once)
		if err != nil {
			return err
		}
		onceKind = k
	}

	logger, closeLog, err := openLogger(logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	registry, watcher, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	bridge, closeBridge := openBridge(cfg, logger)
	defer closeBridge()

	relay := &tui.Relay{}
	focus := tui.NewFocusTracker()

	q, err := queue.New(queue.Config{
		TickInterval: cfg.TickInterval.Std(),
		Registry:     registry,
		Delegates:    tui.Factory(relay, focus),
		Rewards:      bridge,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	program := tea.NewProgram(tui.New(q, focus), tea.WithAltScreen(), tea.WithReportFocus())
	relay.Attach(program)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := q.Start(ctx); err != nil {
		return err
	}
	defer q.Stop()

	if watcher != nil {
		go func() {
			for range watcher.Events() {
				registry.Invalidate()
			}
		}()
	}

	if once != "" {
		go func() {
			ticket := q.Enqueue(buildRequest(cfg, onceKind))
			if res, err := ticket.Wait(ctx); err == nil {
				logger.Info("single interaction finished", "success", res.Success)
			}
			program.Quit()
		}()
	} else {
		go runTrigger(ctx, q, cfg, logger)
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

// runTrigger is the interval trigger: one interaction right away, then a
// fresh one per trigger interval.
func runTrigger(ctx context.Context, q *queue.Queue, cfg *config.Config, logger *slog.Logger) {
	enqueue := func() {
		req := buildRequest(cfg, randomKind())
		logger.Debug("trigger enqueue", "kind", req.Kind.String(), "strict", req.Strict)
		q.Enqueue(req)
	}

	enqueue()
	ticker := time.NewTicker(cfg.TriggerInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}

func randomKind() interaction.Kind {
	if rand.IntN(2) == 0 {
		return interaction.KindLockPhrase
	}
	return interaction.KindNumericGuess
}

func buildRequest(cfg *config.Config, kind interaction.Kind) interaction.Request {
	switch kind {
	case interaction.KindNumericGuess:
		return interaction.Request{
			Kind:   interaction.KindNumericGuess,
			Strict: cfg.StrictDefault,
			NumericGuess: interaction.NumericGuessParams{
				Target:       rand.IntN(cfg.GuessMax) + 1,
				Max:          cfg.GuessMax,
				Attempts:     cfg.GuessAttempts,
				MercyPhrases: cfg.MercyPhrases,
			},
		}
	default:
		return interaction.Request{
			Kind:   interaction.KindLockPhrase,
			Strict: cfg.StrictDefault,
			LockPhrase: interaction.LockPhraseParams{
				Phrase:          cfg.LockPhrases[rand.IntN(len(cfg.LockPhrases))],
				RequiredRepeats: cfg.LockRepeats,
			},
		}
	}
}

func parseKind(s string) (interaction.Kind, error) {
	switch s {
	case "lock":
		return interaction.KindLockPhrase, nil
	case "guess":
		return interaction.KindNumericGuess, nil
	default:
		return 0, fmt.Errorf("invalid kind %q: must be lock or guess", s)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// openLogger writes structured logs to a file, or discards them: the
// alt-screen TUI owns the terminal.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { _ = f.Close() }, nil
}

func buildRegistry(cfg *config.Config, logger *slog.Logger) (*surface.Registry, *surface.Watcher, error) {
	var provider surface.Provider
	var watcher *surface.Watcher

	if cfg.LayoutPath != "" {
		provider = &surface.LayoutProvider{Path: cfg.LayoutPath}
		w, err := surface.Watch(cfg.LayoutPath)
		if err != nil {
			logger.Warn("layout watch unavailable", "path", cfg.LayoutPath, "error", err)
		} else {
			watcher = w
		}
	} else {
		provider = &surface.TermProvider{}
	}

	registry, err := surface.NewRegistry(provider, surface.WithLogger(logger))
	if err != nil {
		if watcher != nil {
			_ = watcher.Close()
		}
		return nil, nil, err
	}
	return registry, watcher, nil
}

// openBridge opens the XP ledger, falling back to an in-memory recorder
// when the ledger cannot be opened.
func openBridge(cfg *config.Config, logger *slog.Logger) (reward.Bridge, func()) {
	path := cfg.LedgerPath
	if path == "" {
		path = reward.DefaultLedgerPath()
	}
	ledger, err := reward.OpenLedger(path, logger)
	if err != nil {
		logger.Warn("ledger unavailable, rewards will not persist",
			"path", path,
			"error", err)
		return &reward.Recorder{}, func() {}
	}
	return ledger, func() { _ = ledger.Close() }
}
