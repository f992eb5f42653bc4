// Package main is the entry point for the recall CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vjoshi/recall/internal/chat"
	"github.com/vjoshi/recall/internal/config"
	"github.com/vjoshi/recall/internal/core"
	"github.com/vjoshi/recall/internal/memory"
	"github.com/vjoshi/recall/internal/provider"

	// Modules register themselves via init().
	_ "github.com/vjoshi/recall/internal/gateway"
	_ "github.com/vjoshi/recall/internal/maintenance"
	_ "github.com/vjoshi/recall/modules/memory/engine"
	_ "github.com/vjoshi/recall/modules/memory/inproc"
	_ "github.com/vjoshi/recall/modules/memory/sqlite"
	_ "github.com/vjoshi/recall/modules/provider/openai"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	config.PreloadEnv()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recall",
		Short:         "A bounded, queryable conversation-memory engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), chatCmd(), wipeCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("recall %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Println("\nNo compiled modules.")
				return
			}
			fmt.Println("\nCompiled modules:")
			for _, mod := range mods {
				fmt.Printf("  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start recall with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Surfaces stay down: only the memory stack and the provider load.
			app, appCtx, err := loadFiltered(cmd, "memory", "provider")
			if err != nil {
				return err
			}
			defer app.Stop()
			if err := app.Start(); err != nil {
				return err
			}

			engine, err := resolveEngine(appCtx)
			if err != nil {
				return err
			}

			svc, ok := appCtx.Service("provider.completion")
			if !ok {
				return fmt.Errorf("chat requires a provider module (e.g. provider.openai)")
			}
			completer, ok := svc.(provider.Provider)
			if !ok {
				return fmt.Errorf("service provider.completion has unexpected type")
			}

			sessionID, _ := cmd.Flags().GetString("session")
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			repl := &chat.REPL{
				Engine:    engine,
				Completer: completer,
				SessionID: sessionID,
				In:        os.Stdin,
				Out:       os.Stdout,
				Logger:    slog.Default(),
			}
			return repl.Run(cmd.Context())
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().StringP("session", "s", "", "Session ID to resume (default: new session)")
	return cmd
}

func wipeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wipe <session-id>",
		Short: "Remove a session's turns, profile, and summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, appCtx, err := loadFiltered(cmd, "memory")
			if err != nil {
				return err
			}
			defer app.Stop()
			if err := app.Start(); err != nil {
				return err
			}

			engine, err := resolveEngine(appCtx)
			if err != nil {
				return err
			}

			if err := engine.Wipe(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("session %s wiped\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			appCtx := newAppContext(cfg)
			app := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := app.LoadModules(ids); err != nil {
				return err
			}
			defer app.Stop()

			fmt.Printf("Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

// loadApp loads every configured module and returns the app ready to start.
func loadApp(cmd *cobra.Command) (*core.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	app := core.NewApp(newAppContext(cfg))
	if err := app.LoadModules(config.Resolve(cfg)); err != nil {
		return nil, err
	}
	return app, nil
}

// loadFiltered is loadApp plus access to the shared AppContext for
// service resolution by the CLI itself.
func loadFiltered(cmd *cobra.Command, namespaces ...string) (*core.App, *core.AppContext, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	appCtx := newAppContext(cfg)
	app := core.NewApp(appCtx)

	ids := filterNamespaces(config.Resolve(cfg), namespaces)
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("no modules configured in namespaces %v", namespaces)
	}
	if err := app.LoadModules(ids); err != nil {
		return nil, nil, err
	}
	return app, appCtx, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAppContext(cfg *config.Config) *core.AppContext {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	appCtx := core.NewAppContext(logger, defaultDataDir())
	return appCtx.WithModuleConfigs(cfg.Modules)
}

func resolveEngine(appCtx *core.AppContext) (*memory.Engine, error) {
	svc, ok := appCtx.Service("memory.engine")
	if !ok {
		return nil, fmt.Errorf("memory.engine module is required (add it to the config)")
	}
	engine, ok := svc.(*memory.Engine)
	if !ok {
		return nil, fmt.Errorf("service memory.engine has unexpected type")
	}
	return engine, nil
}

func filterNamespaces(ids []string, namespaces []string) []string {
	var out []string
	for _, id := range ids {
		for _, ns := range namespaces {
			if strings.HasPrefix(id, ns+".") {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/recall/recall.yaml → ./recall.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "recall", "recall.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "recall", "recall.yaml"))
	}

	candidates = append(candidates, "recall.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

func defaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "recall")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "recall")
}
