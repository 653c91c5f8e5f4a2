// Package cli provides the command-line interface for the PRQL compiler,
// grounded on the teacher's internal/cli/root.go (persistent flags, a
// package-level Config stashed for subcommands, spf13/cobra command tree).
package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsql/internal/cli/commands"
	"github.com/leapstack-labs/leapsql/internal/cliconfig"
)

var (
	cfgFile    string
	targetFlag string
	colorFlag  bool
	cfg        *cliconfig.Config
)

// Version is set at build time via -ldflags, mirroring the teacher.
var Version = "0.1.0"

// NewRootCmd builds the prqlc command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "prqlc",
		Short:   "prqlc — compile PRQL to SQL",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			loaded, err := cliconfig.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = loaded
			if cfg.Verbose {
				fmt.Fprintf(os.Stderr, "trace: %s\n", uuid.NewString())
				if f := cliconfig.ConfigFileUsed(); f != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", f)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./prqlc.yaml)")
	root.PersistentFlags().StringVarP(&targetFlag, "target", "t", "", "SQL dialect target (e.g. sql.postgres, postgres)")
	root.PersistentFlags().BoolVar(&colorFlag, "color", false, "colorize diagnostics")
	root.PersistentFlags().Bool("format", true, "pretty-print generated SQL")
	root.PersistentFlags().Bool("signature-comment", true, "append a compiler signature comment")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	root.AddCommand(commands.NewCompileCommand(Config))
	root.AddCommand(commands.NewDialectsCommand())
	root.AddCommand(commands.NewWatchCommand(Config))
	root.AddCommand(commands.NewReplCommand(Config))

	return root
}

// Config returns the CLI config resolved by the current invocation's
// PersistentPreRunE, for subcommands to read.
func Config() *cliconfig.Config { return cfg }

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
