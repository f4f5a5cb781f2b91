// Package main implements cogctl, the command-line front end for the
// cognition engine. It wires a Cognition context to stdin/stdout: each
// subcommand below is a thin adapter onto the abstract command surface of
// spec section 6 (add, retract, query, pause/unpause, clear, get_status,
// get_config/set_config). Run without a subcommand to start an interactive
// REPL over the same surface.
//
// File layout follows the teacher's cmd/nerd split: this file holds the
// entry point, root command, and global flags; repl.go holds the
// interactive loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"noetic/internal/cognition"
	"noetic/internal/config"
	"noetic/internal/kb"
	"noetic/internal/logging"
)

var (
	verbose    bool
	configPath string
	partition  string

	cfg    *config.Config
	engine *cognition.Cognition
	logger *zap.Logger
	cancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "cogctl",
	Short: "cogctl - symbolic cognition engine control plane",
	Long: `cogctl drives the cognition engine's knowledge base, truth-maintenance
system, and rule engine from the command line.

Run without a subcommand to start an interactive REPL. Each subcommand is a
single shot of the same surface the REPL exposes: add, retract, query,
pause, resume, clear, status, and config.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("cogctl: build logger: %w", err)
		}

		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("cogctl: load config: %w", err)
			}
		} else {
			cfg = config.DefaultConfig()
		}
		if err := logging.Initialize(verbose || cfg.Logging.DebugMode); err != nil {
			fmt.Fprintf(os.Stderr, "warning: logging init: %v\n", err)
		}

		engine = cognition.New(cfg, nil)
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		engine.Start(ctx)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if engine != nil {
			engine.Stop()
		}
		if cancel != nil {
			cancel()
		}
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(engine)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&partition, "partition", "p", kb.PartitionGlobal, "default partition for add/query/clear")

	addCmd.Flags().StringVar(&addNoteID, "note", "", "source note id recorded on the assertion")
	retractCmd.Flags().StringVar(&retractKind, "by", "id", "retraction mode: id, note, rule-form, kif")
	queryCmd.Flags().StringVar(&queryMode, "mode", "bindings", "query mode: bindings, true-false, achieve")
	queryCmd.Flags().DurationVar(&queryDeadline, "deadline", 0, "override the query deadline")

	rootCmd.AddCommand(addCmd, retractCmd, queryCmd, pauseCmd, resumeCmd, clearCmd, statusCmd, configCmd)
	configCmd.AddCommand(configGetCmd, configSetCmd)
}

var addNoteID string

var addCmd = &cobra.Command{
	Use:   "add <kif-term>...",
	Short: "Assert or define one or more KIF terms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := engine.Add(joinArgs(args), partition, addNoteID)
		if err != nil {
			return err
		}
		for _, r := range results {
			printAddResult(r)
		}
		return nil
	},
}

var retractKind string

var retractCmd = &cobra.Command{
	Use:   "retract <target>",
	Short: "Retract an assertion or rule",
	Long: `Retracts by assertion id (--by id, default), by source note id
(--by note), by a rule's source form (--by rule-form), or by re-parsing the
KIF text of an active assertion (--by kif).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseRetractKind(retractKind)
		if err != nil {
			return err
		}
		if err := engine.Retract(partition, args[0], kind, args[0]); err != nil {
			return err
		}
		fmt.Println("retracted")
		return nil
	},
}

var (
	queryMode     string
	queryDeadline time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query <kif-pattern>...",
	Short: "Ask the rule engine a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parseQueryMode(queryMode)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if queryDeadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, queryDeadline)
			defer cancel()
		}
		answer, err := engine.Ask(ctx, joinArgs(args), partition, mode)
		if err != nil {
			return err
		}
		printAnswer(answer, mode)
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Suspend forward chaining and new assertions",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine.Pause()
		fmt.Println("paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume forward chaining and new assertions",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine.Unpause()
		fmt.Println("resumed")
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Wipe every assertion in --partition",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine.Clear(partition)
		fmt.Printf("cleared partition %q\n", partition)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status: partitions, rule count, bus stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		printStatus(engine.GetStatus())
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change the running configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printConfig(engine.GetConfig())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <yaml-file>",
	Short: "Replace the running configuration from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		next, err := config.Load(args[0])
		if err != nil {
			return err
		}
		if err := engine.SetConfig(*next); err != nil {
			return err
		}
		fmt.Println("config updated")
		return nil
	},
}
