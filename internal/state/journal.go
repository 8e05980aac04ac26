package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// PlanSummary is one row of the plans table, without the task list.
type PlanSummary struct {
	ID          string
	GoalID      string
	Status      models.PlanStatus
	StrategyID  string
	AdaptedFrom string
	TaskCount   int
	Percent     float64
	UpdatedAt   string
}

// RecordPlan inserts or replaces the snapshot of a plan.
func (db *DB) RecordPlan(p *models.Plan) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", p.ID, err)
	}
	progress := p.Progress()

	_, err = db.Exec(`
		INSERT INTO plans (id, goal_id, status, strategy_id, adapted_from, task_count, percent, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			strategy_id = excluded.strategy_id,
			task_count = excluded.task_count,
			percent = excluded.percent,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, p.ID, p.GoalID, string(p.Status), p.StrategyID, p.AdaptedFrom, progress.Total,
		progress.Percent, string(body), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("record plan %s: %w", p.ID, err)
	}
	return nil
}

// GetPlan returns the last recorded snapshot of a plan.
func (db *DB) GetPlan(id string) (*models.Plan, error) {
	var body string
	err := db.QueryRow(`SELECT body FROM plans WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plan %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}

	var p models.Plan
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	return &p, nil
}

// ListPlans returns every recorded plan, most recently updated first.
func (db *DB) ListPlans() ([]PlanSummary, error) {
	rows, err := db.Query(`
		SELECT id, goal_id, status, COALESCE(strategy_id, ''), COALESCE(adapted_from, ''),
			task_count, percent, updated_at
		FROM plans ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []PlanSummary
	for rows.Next() {
		var s PlanSummary
		var status string
		if err := rows.Scan(&s.ID, &s.GoalID, &status, &s.StrategyID, &s.AdaptedFrom,
			&s.TaskCount, &s.Percent, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		s.Status = models.PlanStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordExecution inserts or replaces the snapshot of an execution.
func (db *DB) RecordExecution(e *models.Execution) error {
	var errKind, errMsg sql.NullString
	if e.ErrorInfo != nil {
		errKind = sql.NullString{String: e.ErrorInfo.Kind, Valid: true}
		errMsg = sql.NullString{String: e.ErrorInfo.Message, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO executions (id, kind, target_id, plan_id, agent_id, attempt, status,
			error_kind, error_message, output, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message,
			output = excluded.output,
			updated_at = excluded.updated_at
	`, e.ID, string(e.Kind), e.TargetID, e.PlanID, e.AgentID, e.Attempt, string(e.Status),
		errKind, errMsg, e.Output, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("record execution %s: %w", e.ID, err)
	}
	return nil
}

const executionColumns = `id, kind, target_id, plan_id, COALESCE(agent_id, ''), attempt, status,
	error_kind, error_message, COALESCE(output, ''), created_at, updated_at`

// GetExecution returns the last recorded snapshot of an execution.
func (db *DB) GetExecution(id string) (*models.Execution, error) {
	row := db.QueryRow(`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: execution %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	return e, nil
}

// ListExecutions returns the executions of a plan in creation order.
func (db *DB) ListExecutions(planID string) ([]*models.Execution, error) {
	rows, err := db.Query(`SELECT `+executionColumns+` FROM executions WHERE plan_id = ? ORDER BY created_at, id`, planID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*models.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(s scanner) (*models.Execution, error) {
	var (
		e                models.Execution
		kind, status     string
		errKind, errMsg  sql.NullString
		created, updated string
	)
	if err := s.Scan(&e.ID, &kind, &e.TargetID, &e.PlanID, &e.AgentID, &e.Attempt, &status,
		&errKind, &errMsg, &e.Output, &created, &updated); err != nil {
		return nil, err
	}
	e.Kind = models.ExecutionKind(kind)
	e.Status = models.ExecutionStatus(status)
	if errKind.Valid {
		e.ErrorInfo = &models.ErrorInfo{Kind: errKind.String, Message: errMsg.String}
	}

	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &e, nil
}
