package httpdto

import "hrchat/internal/domain/thread"

type StartDirectRequest struct {
	TargetUserID string `json:"targetUserId"`
}

type CreateGroupRequest struct {
	Name      string         `json:"name"`
	MemberIDs []string       `json:"memberIds"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func (r CreateGroupRequest) Spec() thread.GroupSpec {
	return thread.GroupSpec{Name: r.Name, MemberIDs: r.MemberIDs, Meta: r.Meta}
}
