package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// WorkloadStatus classifies a professor's weekly load.
type WorkloadStatus string

const (
	WorkloadOverloaded  WorkloadStatus = "overloaded"
	WorkloadUnderloaded WorkloadStatus = "underloaded"
	WorkloadBalanced    WorkloadStatus = "balanced"
)

// GenerationRunKind labels what produced a run record.
type GenerationRunKind string

const (
	GenerationRunGenerate  GenerationRunKind = "generate"
	GenerationRunRebalance GenerationRunKind = "rebalance"
)

// GenerationRun is a versioned audit record of a committed generation or rebalance.
type GenerationRun struct {
	ID         string            `db:"id" json:"id"`
	SchoolYear string            `db:"school_year" json:"school_year"`
	Term       string            `db:"term" json:"term"`
	Version    int               `db:"version" json:"version"`
	Kind       GenerationRunKind `db:"kind" json:"kind"`
	Report     types.JSONText    `db:"report" json:"report"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
}
