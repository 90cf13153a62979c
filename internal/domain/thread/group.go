package thread

import (
	"strings"

	hrchat_errors "hrchat/pkg/errors"
)

// GroupSpec is a request to create a named group.
type GroupSpec struct {
	Name      string         `json:"name"`
	MemberIDs []string       `json:"memberIds"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Validate trims the name, drops blank and duplicate member ids and rejects
// an empty name or member list.
func (g *GroupSpec) Validate() error {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return hrchat_errors.NewValidation("name", "group name is required")
	}

	ids := make([]string, 0, len(g.MemberIDs))
	seen := make(map[string]struct{}, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return hrchat_errors.NewValidation("memberIds", "at least one member is required")
	}
	g.MemberIDs = ids
	return nil
}

// WithCreator returns the member ids with creatorID included.
func (g GroupSpec) WithCreator(creatorID string) []string {
	for _, id := range g.MemberIDs {
		if id == creatorID {
			return append([]string(nil), g.MemberIDs...)
		}
	}
	return append([]string{creatorID}, g.MemberIDs...)
}
