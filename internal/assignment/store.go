package assignment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GameFeedback is the canned feedback recorded on game-generated submissions.
const GameFeedback = "Game completed."

type ListOpts struct {
	StudentID string
	Status    string
	Limit     int
	Offset    int
}

type Store interface {
	PutMaterial(ctx context.Context, m Material) error
	GetMaterial(ctx context.Context, id string) (Material, error)

	CreateAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ListAssignments(ctx context.Context, opts ListOpts) ([]Assignment, error)

	LatestSubmission(ctx context.Context, assignmentID string) (Submission, error)

	// CompleteGame runs the scoring state machine for one attempt. The whole
	// read-decide-write sequence happens under the store's consistency
	// boundary so concurrent retries settle to one consistent state.
	CompleteGame(ctx context.Context, assignmentID, studentID string, score float64) (CompletionResult, error)

	// SaveDraft persists the trimmed draft and applies the first-touch
	// ASSIGNED -> IN_PROGRESS transition.
	SaveDraft(ctx context.Context, assignmentID, studentID, draft string) (time.Time, error)

	// SubmitResponse finalizes the student's written draft as a submission.
	SubmitResponse(ctx context.Context, assignmentID, studentID string) (Submission, error)

	// GradeLatest records the teacher's score/feedback on the latest
	// submission and moves the assignment to GRADED.
	GradeLatest(ctx context.Context, assignmentID string, score float64, feedback string) (Submission, error)
}

type memoryStore struct {
	mu          sync.RWMutex
	materials   map[string]Material
	assignments map[string]Assignment
	submissions map[string][]Submission // assignmentID -> creation order
}

func NewInMemoryStore() Store {
	return &memoryStore{
		materials:   map[string]Material{},
		assignments: map[string]Assignment{},
		submissions: map[string][]Submission{},
	}
}

func (m *memoryStore) PutMaterial(_ context.Context, mat Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mat.CreatedAt == 0 {
		mat.CreatedAt = time.Now().Unix()
	}
	m.materials[mat.ID] = mat
	return nil
}

func (m *memoryStore) GetMaterial(_ context.Context, id string) (Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mat, ok := m.materials[id]
	if !ok {
		return Material{}, ErrNotFound
	}
	return mat, nil
}

func (m *memoryStore) CreateAssignment(_ context.Context, a Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.materials[a.MaterialID]; !ok {
		return ErrNotFound
	}
	now := time.Now().Unix()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = StatusAssigned
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *memoryStore) GetAssignment(_ context.Context, id string) (Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) ListAssignments(_ context.Context, opts ListOpts) ([]Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Assignment{}
	for _, a := range m.assignments {
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		if opts.Status != "" && string(a.Status) != opts.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryStore) LatestSubmission(_ context.Context, assignmentID string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := m.submissions[assignmentID]
	if len(subs) == 0 {
		return Submission{}, ErrNotFound
	}
	return subs[len(subs)-1], nil
}

func (m *memoryStore) CompleteGame(_ context.Context, assignmentID, studentID string, score float64) (CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok || a.StudentID != studentID {
		return CompletionResult{}, ErrNotFound
	}
	mat, ok := m.materials[a.MaterialID]
	if !ok {
		return CompletionResult{}, ErrNotFound
	}
	gt, err := GameTypeOf(mat)
	if err != nil {
		return CompletionResult{}, err
	}

	var latest *Submission
	if subs := m.submissions[assignmentID]; len(subs) > 0 {
		latest = &subs[len(subs)-1]
	}

	out := Evaluate(EvalInput{GameType: gt, Status: a.Status, Latest: latest, Score: score})
	now := time.Now().Unix()
	switch {
	case out.CreateSubmission:
		s := score
		m.submissions[assignmentID] = append(m.submissions[assignmentID], Submission{
			ID:           uuid.NewString(),
			AssignmentID: assignmentID,
			StudentID:    studentID,
			Status:       SubmissionSubmitted,
			Score:        &s,
			Feedback:     GameFeedback,
			SubmittedAt:  &now,
			GradedAt:     &now,
			CreatedAt:    now,
		})
	case out.UpdateLatestScore:
		s := score
		latest.Score = &s
	}
	if out.SetGraded {
		a.Status = StatusGraded
		a.UpdatedAt = now
		m.assignments[assignmentID] = a
	}
	return out.Result, nil
}

func (m *memoryStore) SaveDraft(_ context.Context, assignmentID, studentID, draft string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok {
		return time.Time{}, ErrNotFound
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
	a.DraftResponse = draft
	a.Status = next
	a.UpdatedAt = now.Unix()
	m.assignments[assignmentID] = a
	return now, nil
}

func (m *memoryStore) SubmitResponse(_ context.Context, assignmentID, studentID string) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok || a.StudentID != studentID {
		return Submission{}, ErrNotFound
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
	m.submissions[assignmentID] = append(m.submissions[assignmentID], sub)
	a.Status = StatusSubmitted
	a.UpdatedAt = now
	m.assignments[assignmentID] = a
	return sub, nil
}

func (m *memoryStore) GradeLatest(_ context.Context, assignmentID string, score float64, feedback string) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok {
		return Submission{}, ErrNotFound
	}
	subs := m.submissions[assignmentID]
	if len(subs) == 0 {
		return Submission{}, ErrNotFound
	}
	now := time.Now().Unix()
	latest := &subs[len(subs)-1]
	latest.Score = &score
	latest.Feedback = feedback
	latest.Status = SubmissionGraded
	latest.GradedAt = &now

	a.Status = StatusGraded
	a.UpdatedAt = now
	m.assignments[assignmentID] = a
	return *latest, nil
}
