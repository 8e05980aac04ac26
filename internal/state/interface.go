package state

import (
	"io"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// PlanJournal handles plan snapshots.
type PlanJournal interface {
	RecordPlan(p *models.Plan) error
	GetPlan(id string) (*models.Plan, error)
	ListPlans() ([]PlanSummary, error)
}

// ExecutionJournal handles execution snapshots.
type ExecutionJournal interface {
	RecordExecution(e *models.Execution) error
	GetExecution(id string) (*models.Execution, error)
	ListExecutions(planID string) ([]*models.Execution, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Journal composes everything the orchestrator writes and the CLI reads.
type Journal interface {
	io.Closer
	Migrator
	PlanJournal
	ExecutionJournal
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Journal          = (*DB)(nil)
	_ Migrator         = (*DB)(nil)
	_ PlanJournal      = (*DB)(nil)
	_ ExecutionJournal = (*DB)(nil)
)
