package sqlgen

import "strings"

// Format whitespace-normalises a generated SQL string (spec §4.5): every
// clause already lands on its own line by construction in run()/render(),
// so formatting here just trims trailing space and drops blank lines,
// leaving the 2-space indentation render() applied to nested subqueries
// and CTEs untouched.
func Format(sql string) string {
	lines := strings.Split(sql, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		trimmed := strings.TrimRight(l, " \t")
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
