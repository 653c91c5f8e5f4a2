package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsql/internal/clidiag"
	"github.com/leapstack-labs/leapsql/internal/cliconfig"
	"github.com/leapstack-labs/leapsql/pkg/compiler"
)

// NewReplCommand builds `prqlc repl`, an interactive read-eval-print loop
// over compiler.Compile, grounded on the teacher's query REPL
// (internal/cli/commands/query_repl.go): chzyer/readline for line editing
// and history, a trailing `;` (here reused as PRQL has no statement
// terminator, a blank line) to submit multi-line input.
func NewReplCommand(getConfig func() *cliconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive PRQL -> SQL REPL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd, getConfig)
		},
	}
}

func runRepl(cmd *cobra.Command, getConfig func() *cliconfig.Config) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "prql> ",
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("initializing repl: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "prqlc REPL — enter a pipeline, blank line to compile, .quit to exit")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt("prql> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == ".quit" || trimmed == ".exit" {
			return nil
		}
		if trimmed == "" {
			if buf.Len() == 0 {
				continue
			}
			source := buf.String()
			buf.Reset()
			rl.SetPrompt("prql> ")
			evalAndPrint(cmd, getConfig, source)
			continue
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		rl.SetPrompt("  -> ")
	}
}

func evalAndPrint(cmd *cobra.Command, getConfig func() *cliconfig.Config, source string) {
	cfg := getConfig()
	if cfg == nil {
		cfg = &cliconfig.Config{Format: true, SignatureComment: true}
	}
	sql, errs := compiler.Compile(source, cfg.CompilerOptions())
	if errs.HasErrors() {
		styles := clidiag.PlainStyles()
		if cfg.Color {
			styles = clidiag.ColorStyles()
		}
		fmt.Fprint(cmd.ErrOrStderr(), clidiag.Render(errs, map[uint16]string{0: source}, styles))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), sql)
}
