package commands

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsql/internal/clidiag"
	"github.com/leapstack-labs/leapsql/internal/cliconfig"
	"github.com/leapstack-labs/leapsql/pkg/compiler"
)

// NewWatchCommand builds `prqlc watch <file.prql>`, recompiling on save.
// Spec §1 calls the file-watcher an external collaborator of the
// compiler core; this command is a thin convenience wrapper around
// compiler.Compile using fsnotify, grounded on the teacher's
// internal/docs/dev.go watcher.
func NewWatchCommand(getConfig func() *cliconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file.prql>",
		Short: "Recompile a PRQL file to SQL on every save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			defer func() { _ = watcher.Close() }()

			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}

			compileOnce(cmd, getConfig, path)
			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						compileOnce(cmd, getConfig, path)
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintln(cmd.ErrOrStderr(), "watch error:", err)
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}
}

func compileOnce(cmd *cobra.Command, getConfig func() *cliconfig.Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "read error:", err)
		return
	}
	cfg := getConfig()
	if cfg == nil {
		cfg = &cliconfig.Config{Format: true, SignatureComment: true}
	}
	sql, errs := compiler.Compile(string(data), cfg.CompilerOptions())
	if errs.HasErrors() {
		styles := clidiag.PlainStyles()
		if cfg.Color {
			styles = clidiag.ColorStyles()
		}
		fmt.Fprint(cmd.ErrOrStderr(), clidiag.Render(errs, map[uint16]string{0: string(data)}, styles))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), sql)
}
