package thread

import (
	"sort"
	"strings"
)

const (
	pairSeparator = " & "
	unknownName   = "Unknown"
)

// Resolver derives what the current user sees for a thread.
type Resolver struct {
	UserID   string
	UserName string
}

// DisplayName resolves the name of t for currentUserID.
func DisplayName(t Thread, currentUserID string) string {
	r := Resolver{UserID: currentUserID}
	if self, ok := t.Member(currentUserID); ok {
		r.UserName = self.Name
	}
	return r.DisplayName(t)
}

// IsPairName reports whether name looks like an auto generated "A & B"
// direct thread name.
func IsPairName(name string) bool {
	parts := strings.Split(name, pairSeparator)
	if len(parts) != 2 {
		return false
	}
	return strings.TrimSpace(parts[0]) != "" && strings.TrimSpace(parts[1]) != ""
}

// DisplayName applies, in order: the stored group name, the other member's
// name, the other half of an "A & B" name, the raw name, "Unknown".
func (r Resolver) DisplayName(t Thread) string {
	name := strings.TrimSpace(t.Name)
	if !t.IsDirect && name != "" && !IsPairName(name) {
		return name
	}

	// Members are unordered, so an unnamed other member never shadows a
	// named one. With none named the pair split below still applies.
	for _, m := range t.Members {
		if m.ID != r.UserID && m.Name != "" {
			return m.Name
		}
	}

	if strings.Contains(name, pairSeparator) {
		own := r.ownName(t)
		for _, part := range strings.Split(name, pairSeparator) {
			part = strings.TrimSpace(part)
			if part != "" && part != own {
				return part
			}
		}
	}

	if name != "" {
		return name
	}
	return unknownName
}

// Roster lists the members to show: everyone but the current user for
// direct threads, everyone sorted by name for groups.
func (r Resolver) Roster(t Thread) []Member {
	out := make([]Member, 0, len(t.Members))
	for _, m := range t.Members {
		if t.IsDirect && m.ID == r.UserID {
			continue
		}
		out = append(out, m)
	}
	if !t.IsDirect {
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}
	return out
}

func (r Resolver) ownName(t Thread) string {
	if r.UserName != "" {
		return r.UserName
	}
	if self, ok := t.Member(r.UserID); ok {
		return self.Name
	}
	return ""
}
