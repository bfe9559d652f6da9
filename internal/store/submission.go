package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

type SubmissionStore struct {
	db DBTX
}

func NewSubmissionStore(db DBTX) *SubmissionStore {
	return &SubmissionStore{db: db}
}

const submissionCols = `id, tenant_id, assignment_id, submitted_by, notes, media_urls, submitted_at, reviewed_at, reviewed_by, review_status, feedback, points_awarded`

func scanSubmission(sc scanner) (*model.ChoreSubmission, error) {
	var sub model.ChoreSubmission
	var media string
	var reviewedAt sql.NullTime
	var reviewedBy sql.NullString
	var points sql.NullInt64
	err := sc.Scan(
		&sub.ID, &sub.TenantID, &sub.AssignmentID, &sub.SubmittedBy, &sub.Notes, &media,
		&sub.SubmittedAt, &reviewedAt, &reviewedBy, &sub.ReviewStatus, &sub.Feedback, &points,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(media), &sub.MediaURLs); err != nil {
		return nil, fmt.Errorf("decode media urls: %w", err)
	}
	if sub.MediaURLs == nil {
		sub.MediaURLs = []string{}
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		sub.ReviewedAt = &t
	}
	sub.ReviewedBy = stringPtr(reviewedBy)
	if points.Valid {
		p := int(points.Int64)
		sub.PointsAwarded = &p
	}
	return &sub, nil
}

// Create inserts a pending submission. The partial unique index rejects a
// second pending submission for the same assignment.
func (s *SubmissionStore) Create(ctx context.Context, tenantID, assignmentID, submittedBy, notes string, mediaURLs []string) (*model.ChoreSubmission, error) {
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	media, err := json.Marshal(mediaURLs)
	if err != nil {
		return nil, fmt.Errorf("encode media urls: %w", err)
	}
	id := newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chore_submissions (id, tenant_id, assignment_id, submitted_by, notes, media_urls, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, tenantID, assignmentID, submittedBy, notes, string(media), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return s.GetByID(ctx, tenantID, id)
}

// GetByID returns nil when the submission does not exist in the tenant.
func (s *SubmissionStore) GetByID(ctx context.Context, tenantID, id string) (*model.ChoreSubmission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM chore_submissions WHERE id = ? AND tenant_id = ?`, id, tenantID)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// ListByAssignment returns the submission history, oldest first.
func (s *SubmissionStore) ListByAssignment(ctx context.Context, tenantID, assignmentID string) ([]model.ChoreSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM chore_submissions WHERE tenant_id = ? AND assignment_id = ? ORDER BY submitted_at ASC, rowid ASC`,
		tenantID, assignmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []model.ChoreSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// Review records a decision on a pending submission. It reports false when
// the submission was no longer pending.
func (s *SubmissionStore) Review(ctx context.Context, tenantID, id, reviewerID string, decision model.ReviewStatus, feedback string, points *int) (bool, error) {
	var pts sql.NullInt64
	if points != nil {
		pts = sql.NullInt64{Int64: int64(*points), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chore_submissions
		 SET review_status = ?, reviewed_by = ?, reviewed_at = ?, feedback = ?, points_awarded = ?
		 WHERE id = ? AND tenant_id = ? AND review_status = 'pending'`,
		decision, reviewerID, time.Now().UTC(), feedback, pts, id, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("review submission: %w", err)
	}
	return affected(res)
}
