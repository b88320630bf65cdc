// Package repository persists assessment audit rows in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
)

// AssessmentRepository handles assessment record persistence
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new assessment record into the database
func (r *AssessmentRepository) Create(ctx context.Context, record *domain.AssessmentRecord) error {
	// Marshal JSONB fields
	profileJSON, err := json.Marshal(record.Profile)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	var planJSON []byte
	if record.Plan != nil {
		planJSON, err = json.Marshal(record.Plan)
		if err != nil {
			return fmt.Errorf("marshaling therapy plan: %w", err)
		}
	}

	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	var caseID *string
	if record.CaseID != "" {
		caseID = &record.CaseID
	}

	query := `
		INSERT INTO assessments (
			id, case_id, model_variant, horizon, risk_tier,
			baseline_risk, projected_risk, profile, therapy_plan, result, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err = r.db.Exec(ctx, query,
		record.ID,
		caseID,
		record.ModelVariant,
		record.Horizon,
		record.Tier,
		record.BaselineRisk,
		record.ProjectedRisk,
		profileJSON,
		planJSON,
		resultJSON,
		record.CreatedAt,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": record.ID,
			"case_id":       record.CaseID,
			"tier":          record.Tier,
			"error":         err,
		}).Error("Failed to create assessment record")
		return fmt.Errorf("creating assessment record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"assessment_id": record.ID,
		"tier":          record.Tier,
		"baseline_risk": record.BaselineRisk,
	}).Info("Assessment record created successfully")

	return nil
}

// rowScanner is an interface for pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAssessment scans a row into an AssessmentRecord.
func scanAssessment(row rowScanner) (*domain.AssessmentRecord, error) {
	var record domain.AssessmentRecord
	var caseID *string
	var profileJSON, planJSON, resultJSON []byte

	err := row.Scan(
		&record.ID,
		&caseID,
		&record.ModelVariant,
		&record.Horizon,
		&record.Tier,
		&record.BaselineRisk,
		&record.ProjectedRisk,
		&profileJSON,
		&planJSON,
		&resultJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if caseID != nil {
		record.CaseID = *caseID
	}
	if err := json.Unmarshal(profileJSON, &record.Profile); err != nil {
		return nil, fmt.Errorf("unmarshaling profile: %w", err)
	}
	if len(planJSON) > 0 {
		if err := json.Unmarshal(planJSON, &record.Plan); err != nil {
			return nil, fmt.Errorf("unmarshaling therapy plan: %w", err)
		}
	}
	if err := json.Unmarshal(resultJSON, &record.Result); err != nil {
		return nil, fmt.Errorf("unmarshaling result: %w", err)
	}

	return &record, nil
}

const assessmentColumns = `id, case_id, model_variant, horizon, risk_tier,
		baseline_risk, projected_risk, profile, therapy_plan, result, created_at`

// GetByID retrieves an assessment record by its ID
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE id = $1`

	record, err := scanAssessment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("assessment not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"assessment_id": id,
			"error":         err,
		}).Error("Failed to get assessment by ID")
		return nil, fmt.Errorf("getting assessment by ID: %w", err)
	}

	return record, nil
}

// ListRecent retrieves the most recent assessment records with pagination
func (r *AssessmentRepository) ListRecent(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM assessments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.WithError(err).Error("Failed to list recent assessments")
		return nil, fmt.Errorf("listing recent assessments: %w", err)
	}
	defer rows.Close()

	var records []*domain.AssessmentRecord
	for rows.Next() {
		record, err := scanAssessment(rows)
		if err != nil {
			r.log.WithError(err).Error("Failed to scan assessment row")
			return nil, fmt.Errorf("scanning assessment row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessment rows: %w", err)
	}

	return records, nil
}

// ListByCase retrieves assessment records for a saved case with pagination
func (r *AssessmentRepository) ListByCase(ctx context.Context, caseID string, limit, offset int) ([]*domain.AssessmentRecord, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, caseID, limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"case_id": caseID,
			"error":   err,
		}).Error("Failed to list assessments by case")
		return nil, fmt.Errorf("listing assessments by case: %w", err)
	}
	defer rows.Close()

	var records []*domain.AssessmentRecord
	for rows.Next() {
		record, err := scanAssessment(rows)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"case_id": caseID,
				"error":   err,
			}).Error("Failed to scan assessment row")
			return nil, fmt.Errorf("scanning assessment row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessment rows: %w", err)
	}

	return records, nil
}

// CountByTier returns the number of stored assessments per risk tier
func (r *AssessmentRepository) CountByTier(ctx context.Context) (map[domain.RiskTier]int64, error) {
	query := `
		SELECT risk_tier, COUNT(*)
		FROM assessments
		GROUP BY risk_tier`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.WithError(err).Error("Failed to count assessments by tier")
		return nil, fmt.Errorf("counting assessments by tier: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.RiskTier]int64)
	for rows.Next() {
		var tier domain.RiskTier
		var count int64
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("scanning tier count: %w", err)
		}
		counts[tier] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tier counts: %w", err)
	}

	return counts, nil
}
