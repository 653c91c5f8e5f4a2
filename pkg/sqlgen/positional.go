package sqlgen

import "github.com/leapstack-labs/leapsql/pkg/rq"

// alignPositional renames sel's projected SELECT items to the output
// column names target declares, pairing them up by position.
//
// Resolves spec.md §9's Open Question on UNION/APPEND column alignment:
// RQ's Append transform already guarantees both sides carry the same
// column count (§4.2's Lineage table propagates the left side's columns
// through unchanged), so every SQL dialect here matches an Append's two
// SELECTs positionally regardless of alias — there's no dialect-specific
// case to special-case. Re-aliasing the right side to agree with the left
// is purely for generated-SQL readability.
func alignPositional(sel *selectBuilder, target []rq.RelationColumn) {
	if sel.raw != "" || len(sel.wildcard) > 0 {
		return
	}
	for i := range sel.selectItems {
		if i >= len(target) || target[i].Name == "" {
			continue
		}
		sel.selectItems[i].alias = target[i].Name
	}
}
