package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsql/pkg/dialect"
)

// NewDialectsCommand builds `prqlc dialects`, listing the capability
// matrix of spec §4.5's dialect table via go-pretty, the teacher's
// tabular-output library (internal/cli/commands/query_render.go).
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List known SQL dialect targets and their capabilities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Dialect", "Row limit", "Ident quote", "Exclude keyword", "Offset support"})
			for _, d := range dialect.All() {
				rowLimit := "LIMIT"
				if d.RowLimit == dialect.StyleTop {
					rowLimit = "TOP"
				}
				exclude := string(d.ExcludeKw)
				if exclude == "" {
					exclude = "-"
				}
				t.AppendRow(table.Row{d.Name.String(), rowLimit, d.IdentQuote + d.IdentQuoteEnd, exclude, d.SupportsOffset})
			}
			t.Render()
			return nil
		},
	}
}
