package directory

import (
	"time"

	"projectnotify/internal/constants"
)

// Project is the directory's view of a collaborative project. It is fetched
// fresh per event and never cached across rule evaluations.
type Project struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Type        string         `json:"type"`
	Members     []Member       `json:"members"`
	Details     ProjectDetails `json:"details"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type ProjectDetails struct {
	UTM UTM `json:"utm"`
}

type UTM struct {
	Code string `json:"code"`
}

type Member struct {
	UserID    int64  `json:"userId"`
	Role      string `json:"role"`
	IsPrimary bool   `json:"isPrimary"`
}

// Owner returns the primary customer member. First match wins when the
// source data is inconsistent.
func (p *Project) Owner() (Member, bool) {
	for _, m := range p.Members {
		if m.Role == constants.RoleCustomer && m.IsPrimary {
			return m, true
		}
	}
	return Member{}, false
}

// MembersByRole returns the members holding the given role.
func (p *Project) MembersByRole(role string) []Member {
	var out []Member
	for _, m := range p.Members {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type User struct {
	UserID    int64  `json:"userId"`
	Handle    string `json:"handle"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Topic is a discourse topic creation request.
type Topic struct {
	Reference   string `json:"reference"`
	ReferenceID string `json:"referenceId"`
	Tag         string `json:"tag"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}
