package ledger

import (
	"strings"

	"golang.org/x/text/cases"

	"mkoba/internal/core"
)

// FilterMembers keeps members whose name contains query, ignoring case.
// An empty query returns every member.
func FilterMembers(members []core.Member, query string) []core.Member {
	query = strings.TrimSpace(query)
	if query == "" {
		return members
	}
	// Casers are stateful, so one per call
	fold := cases.Fold()
	needle := fold.String(query)
	var out []core.Member
	for _, m := range members {
		if strings.Contains(fold.String(m.Name), needle) {
			out = append(out, m)
		}
	}
	return out
}
