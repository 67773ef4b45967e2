package models

import (
	"fmt"
	"strings"
)

// Period scopes every entity and assignment to a school year and term.
type Period struct {
	SchoolYear string `db:"school_year" json:"school_year"`
	Term       string `db:"term" json:"term"`
}

// Validate ensures both halves of the scope are set.
func (p Period) Validate() error {
	if strings.TrimSpace(p.SchoolYear) == "" || strings.TrimSpace(p.Term) == "" {
		return fmt.Errorf("school year and term are required")
	}
	return nil
}

// Key is a stable identifier for locks and cache entries.
func (p Period) Key() string {
	return p.SchoolYear + ":" + p.Term
}

func (p Period) String() string {
	return fmt.Sprintf("%s/%s", p.SchoolYear, p.Term)
}
