package assignment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	syncx "github.com/JiskaLaaksovirta/athena-ai-lab/internal/sync"
)

// SQLStore persists assignments over database/sql and works against both the
// sqlite and postgres schemas. Completion and submission flows run inside a
// single transaction; on postgres the assignment row is locked FOR UPDATE so
// concurrent retries serialize on the read-decide-write sequence.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutMaterial(ctx context.Context, m Material) error {
	created := m.CreatedAt
	if created == 0 {
		created = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO materials (id,title,subject,content,structured_content,game_type,created_by,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, subject=EXCLUDED.subject,
		   content=EXCLUDED.content, structured_content=EXCLUDED.structured_content,
		   game_type=EXCLUDED.game_type`,
		m.ID, m.Title, m.Subject, m.Content, string(m.StructuredContent), string(m.GameType), m.CreatedBy, created)
	return err
}

func (s *SQLStore) GetMaterial(ctx context.Context, id string) (Material, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,subject,content,structured_content,game_type,created_by,created_at
		 FROM materials WHERE id=$1`, id)
	return scanMaterial(row)
}

func (s *SQLStore) CreateAssignment(ctx context.Context, a Assignment) error {
	var exist int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM materials WHERE id=$1`, a.MaterialID).Scan(&exist)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	if a.Status == "" {
		a.Status = StatusAssigned
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assignments (id,material_id,student_id,status,draft_response,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.MaterialID, a.StudentID, string(a.Status), a.DraftResponse, now, now)
	return err
}

func (s *SQLStore) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,material_id,student_id,status,draft_response,created_at,updated_at
		 FROM assignments WHERE id=$1`, id)
	return scanAssignment(row)
}

func (s *SQLStore) ListAssignments(ctx context.Context, opts ListOpts) ([]Assignment, error) {
	q := `SELECT id,material_id,student_id,status,draft_response,created_at,updated_at FROM assignments`
	var conds []string
	var args []any
	if opts.StudentID != "" {
		args = append(args, opts.StudentID)
		conds = append(conds, fmt.Sprintf("student_id=$%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignmentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) LatestSubmission(ctx context.Context, assignmentID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,assignment_id,student_id,status,score,feedback,submitted_at,graded_at,created_at
		 FROM submissions WHERE assignment_id=$1 ORDER BY created_at DESC LIMIT 1`, assignmentID)
	return scanSubmission(row)
}

func (s *SQLStore) CompleteGame(ctx context.Context, assignmentID, studentID string, score float64) (CompletionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CompletionResult{}, err
	}
	defer tx.Rollback()

	a, err := s.lockAssignment(ctx, tx, assignmentID, studentID)
	if err != nil {
		return CompletionResult{}, err
	}

	var structured, gameType string
	err = tx.QueryRowContext(ctx,
		`SELECT structured_content, game_type FROM materials WHERE id=$1`, a.MaterialID).
		Scan(&structured, &gameType)
	if errors.Is(err, sql.ErrNoRows) {
		return CompletionResult{}, ErrNotFound
	}
	if err != nil {
		return CompletionResult{}, err
	}
	gt, err := GameTypeOf(Material{GameType: GameType(gameType), StructuredContent: json.RawMessage(structured)})
	if err != nil {
		return CompletionResult{}, err
	}

	var latest *Submission
	row := tx.QueryRowContext(ctx,
		`SELECT id,assignment_id,student_id,status,score,feedback,submitted_at,graded_at,created_at
		 FROM submissions WHERE assignment_id=$1 ORDER BY created_at DESC LIMIT 1`, assignmentID)
	if sub, err := scanSubmission(row); err == nil {
		latest = &sub
	} else if !errors.Is(err, ErrNotFound) {
		return CompletionResult{}, err
	}

	out := Evaluate(EvalInput{GameType: gt, Status: a.Status, Latest: latest, Score: score})
	now := time.Now().Unix()
	switch {
	case out.CreateSubmission:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO submissions (id,assignment_id,student_id,status,score,feedback,submitted_at,graded_at,created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			uuid.NewString(), assignmentID, studentID, SubmissionSubmitted, score, GameFeedback, now, now, now)
	case out.UpdateLatestScore:
		_, err = tx.ExecContext(ctx,
			`UPDATE submissions SET score=$1 WHERE id=$2`, score, latest.ID)
	}
	if err != nil {
		return CompletionResult{}, err
	}
	if out.SetGraded {
		if _, err := tx.ExecContext(ctx,
			`UPDATE assignments SET status=$1, updated_at=$2 WHERE id=$3`,
			string(StatusGraded), now, assignmentID); err != nil {
			return CompletionResult{}, err
		}
	}

	data, _ := json.Marshal(map[string]any{"score": score, "status": out.Result.Status, "game_type": string(gt)})
	if err := syncx.AppendTx(ctx, tx, syncx.Event{
		Type: syncx.EventGameCompleted, Key: assignmentID, DataJSON: string(data),
	}); err != nil {
		return CompletionResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return CompletionResult{}, err
	}
	return out.Result, nil
}

func (s *SQLStore) SaveDraft(ctx context.Context, assignmentID, studentID, draft string) (time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback()

	a, err := s.lockAssignmentAnyOwner(ctx, tx, assignmentID)
	if err != nil {
		return time.Time{}, err
	}
	if a.StudentID != studentID {
		return time.Time{}, ErrForbidden
	}
	draft = strings.TrimSpace(draft)
	next, err := NextStatusForDraft(a.Status, draft)
	if err != nil {
		return time.Time{}, err
	}
	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE assignments SET draft_response=$1, status=$2, updated_at=$3 WHERE id=$4`,
		draft, string(next), now.Unix(), assignmentID); err != nil {
		return time.Time{}, err
	}
	if next != a.Status {
		if err := syncx.AppendTx(ctx, tx, syncx.Event{
			Type: syncx.EventDraftSaved, Key: assignmentID,
			DataJSON: fmt.Sprintf(`{"status":%q}`, next),
		}); err != nil {
			return time.Time{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

func (s *SQLStore) SubmitResponse(ctx context.Context, assignmentID, studentID string) (Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Submission{}, err
	}
	defer tx.Rollback()

	a, err := s.lockAssignment(ctx, tx, assignmentID, studentID)
	if err != nil {
		return Submission{}, err
	}
	if a.Status == StatusSubmitted || a.Status == StatusGraded {
		return Submission{}, ErrLocked
	}
	now := time.Now().Unix()
	sub := Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Status:       SubmissionSubmitted,
		SubmittedAt:  &now,
		CreatedAt:    now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (id,assignment_id,student_id,status,submitted_at,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.Status, now, now); err != nil {
		return Submission{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE assignments SET status=$1, updated_at=$2 WHERE id=$3`,
		string(StatusSubmitted), now, assignmentID); err != nil {
		return Submission{}, err
	}
	if err := syncx.AppendTx(ctx, tx, syncx.Event{
		Type: syncx.EventAttemptSubmitted, Key: assignmentID,
		DataJSON: fmt.Sprintf(`{"submission_id":%q}`, sub.ID),
	}); err != nil {
		return Submission{}, err
	}
	if err := tx.Commit(); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (s *SQLStore) GradeLatest(ctx context.Context, assignmentID string, score float64, feedback string) (Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Submission{}, err
	}
	defer tx.Rollback()

	if _, err := s.lockAssignmentAnyOwner(ctx, tx, assignmentID); err != nil {
		return Submission{}, err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT id,assignment_id,student_id,status,score,feedback,submitted_at,graded_at,created_at
		 FROM submissions WHERE assignment_id=$1 ORDER BY created_at DESC LIMIT 1`, assignmentID)
	sub, err := scanSubmission(row)
	if err != nil {
		return Submission{}, err
	}
	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx,
		`UPDATE submissions SET score=$1, feedback=$2, status=$3, graded_at=$4 WHERE id=$5`,
		score, feedback, SubmissionGraded, now, sub.ID); err != nil {
		return Submission{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE assignments SET status=$1, updated_at=$2 WHERE id=$3`,
		string(StatusGraded), now, assignmentID); err != nil {
		return Submission{}, err
	}
	if err := syncx.AppendTx(ctx, tx, syncx.Event{
		Type: syncx.EventAttemptGraded, Key: assignmentID,
		DataJSON: fmt.Sprintf(`{"submission_id":%q,"score":%g}`, sub.ID, score),
	}); err != nil {
		return Submission{}, err
	}
	if err := tx.Commit(); err != nil {
		return Submission{}, err
	}
	sub.Score = &score
	sub.Feedback = feedback
	sub.Status = SubmissionGraded
	sub.GradedAt = &now
	return sub, nil
}

// lockAssignment reads the assignment scoped to its owner; a wrong owner is
// indistinguishable from a missing row, per the lookup-failure contract.
func (s *SQLStore) lockAssignment(ctx context.Context, tx *sql.Tx, id, studentID string) (Assignment, error) {
	q := `SELECT id,material_id,student_id,status,draft_response,created_at,updated_at
	      FROM assignments WHERE id=$1 AND student_id=$2`
	if s.driver == "postgres" {
		q += " FOR UPDATE"
	}
	return scanAssignment(tx.QueryRowContext(ctx, q, id, studentID))
}

func (s *SQLStore) lockAssignmentAnyOwner(ctx context.Context, tx *sql.Tx, id string) (Assignment, error) {
	q := `SELECT id,material_id,student_id,status,draft_response,created_at,updated_at
	      FROM assignments WHERE id=$1`
	if s.driver == "postgres" {
		q += " FOR UPDATE"
	}
	return scanAssignment(tx.QueryRowContext(ctx, q, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (Material, error) {
	var m Material
	var structured, gameType string
	err := row.Scan(&m.ID, &m.Title, &m.Subject, &m.Content, &structured, &gameType, &m.CreatedBy, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Material{}, ErrNotFound
	}
	if err != nil {
		return Material{}, err
	}
	m.StructuredContent = json.RawMessage(structured)
	m.GameType = GameType(gameType)
	return m, nil
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var a Assignment
	var status string
	err := row.Scan(&a.ID, &a.MaterialID, &a.StudentID, &status, &a.DraftResponse, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	if err != nil {
		return Assignment{}, err
	}
	a.Status = Status(status)
	return a, nil
}

func scanAssignmentRows(rows *sql.Rows) (Assignment, error) {
	var a Assignment
	var status string
	if err := rows.Scan(&a.ID, &a.MaterialID, &a.StudentID, &status, &a.DraftResponse, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Assignment{}, err
	}
	a.Status = Status(status)
	return a, nil
}

func scanSubmission(row rowScanner) (Submission, error) {
	var sub Submission
	var score sql.NullFloat64
	var submittedAt, gradedAt sql.NullInt64
	err := row.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &sub.Status,
		&score, &sub.Feedback, &submittedAt, &gradedAt, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, err
	}
	if score.Valid {
		sub.Score = &score.Float64
	}
	if submittedAt.Valid {
		sub.SubmittedAt = &submittedAt.Int64
	}
	if gradedAt.Valid {
		sub.GradedAt = &gradedAt.Int64
	}
	return sub, nil
}
