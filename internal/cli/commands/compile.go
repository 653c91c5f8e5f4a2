package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsql/internal/clidiag"
	"github.com/leapstack-labs/leapsql/internal/cliconfig"
	"github.com/leapstack-labs/leapsql/pkg/compiler"
)

// NewCompileCommand builds `prqlc compile <file.prql>`, the driver around
// compiler.Compile (spec §6.1).
func NewCompileCommand(getConfig func() *cliconfig.Config) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "compile [file.prql]",
		Short: "Compile a PRQL query to SQL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, sourceName, err := readSource(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg := getConfig()
			if cfg == nil {
				cfg = &cliconfig.Config{Format: true, SignatureComment: true}
			}
			opts := cfg.CompilerOptions()

			sql, errs := compiler.Compile(source, opts)
			if errs.HasErrors() {
				styles := clidiag.PlainStyles()
				if cfg.Color {
					styles = clidiag.ColorStyles()
				}
				fmt.Fprint(cmd.ErrOrStderr(), clidiag.Render(errs, map[uint16]string{0: source}, styles))
				return fmt.Errorf("compilation failed for %s", sourceName)
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			fmt.Fprintln(out, sql)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write SQL to this file instead of stdout")
	return cmd
}

func readSource(stdin io.Reader, args []string) (source, name string, err error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), args[0], nil
}
