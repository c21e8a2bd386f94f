// Command loom runs, resumes and inspects agent sessions from the terminal.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/loomlabs/loom"
	"github.com/loomlabs/loom/logging"
	"github.com/loomlabs/loom/oracle"
	"github.com/loomlabs/loom/oracle/anthropic"
	"github.com/loomlabs/loom/oracle/openai"
	"github.com/loomlabs/loom/registry"
	"github.com/loomlabs/loom/storage/sqlite"
)

var (
	flagDefs    string
	flagDB      string
	flagOracle  string
	flagVerbose bool
)

func main() {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "loom",
		Short:         "Durable execution engine for tool-using reasoning agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagDefs, "defs", "loom.yaml", "definitions file (configs, tasks, templates)")
	root.PersistentFlags().StringVar(&flagDB, "db", "loom.db", "sqlite record store path")
	root.PersistentFlags().StringVar(&flagOracle, "oracle", "anthropic", "oracle backend: anthropic or openai")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(), newResumeCmd(), newLogCmd(), newSessionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildLoom() (*loom.Loom, *sqlite.Store, error) {
	defs, err := registry.LoadFile(flagDefs)
	if err != nil {
		return nil, nil, fmt.Errorf("load definitions: %w", err)
	}
	store, err := sqlite.Open(flagDB)
	if err != nil {
		return nil, nil, err
	}

	var o oracle.Oracle
	switch flagOracle {
	case "anthropic":
		o = anthropic.New()
	case "openai":
		o = openai.New()
	default:
		store.Close()
		return nil, nil, fmt.Errorf("unknown oracle backend %q", flagOracle)
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := logging.New(&logging.Config{Level: level, Format: "text", Output: os.Stderr}).WithComponent("cli")

	l, err := loom.New(defs, func(opts *loom.Options) {
		opts.Store = store
		opts.Oracle = o
		opts.Logger = logger
		opts.HumanResponder = promptHuman
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return l, store, nil
}

func parseParams(kvs []string) (map[string]any, error) {
	params := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", kv)
		}
		params[k] = v
	}
	return params, nil
}
