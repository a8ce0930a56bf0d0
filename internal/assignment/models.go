package assignment

import "encoding/json"

// Status is the lifecycle of a student's assignment. It only moves forward:
// ASSIGNED -> IN_PROGRESS -> SUBMITTED -> GRADED. The one modeled exception
// is the quiz retry path, where the stored status stays GRADED while further
// scored attempts are still accepted (see Evaluate).
type Status string

const (
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
	StatusGraded     Status = "GRADED"
)

type GameType string

const (
	GameNone    GameType = ""
	GameQuiz    GameType = "quiz"
	GameHangman GameType = "hangman"
	GameMemory  GameType = "memory"
)

// QuizPassScore is the passing threshold for quiz games. Hangman and memory
// games complete on any submitted score.
const QuizPassScore = 80

type Material struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Subject           string          `json:"subject,omitempty"`
	Content           string          `json:"content,omitempty"`
	StructuredContent json.RawMessage `json:"structured_content,omitempty"`
	GameType          GameType        `json:"game_type,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	CreatedAt         int64           `json:"created_at,omitempty"`
}

type Assignment struct {
	ID            string `json:"id"`
	MaterialID    string `json:"material_id"`
	StudentID     string `json:"student_id"`
	Status        Status `json:"status"`
	DraftResponse string `json:"draft_response,omitempty"`
	CreatedAt     int64  `json:"created_at,omitempty"`
	UpdatedAt     int64  `json:"updated_at,omitempty"`
}

type Submission struct {
	ID           string   `json:"id"`
	AssignmentID string   `json:"assignment_id"`
	StudentID    string   `json:"student_id"`
	Status       string   `json:"status"`
	Score        *float64 `json:"score,omitempty"`
	Feedback     string   `json:"feedback,omitempty"`
	SubmittedAt  *int64   `json:"submitted_at,omitempty"`
	GradedAt     *int64   `json:"graded_at,omitempty"`
	CreatedAt    int64    `json:"created_at,omitempty"`
}

// Submission statuses mirror assignment terminology.
const (
	SubmissionSubmitted = "SUBMITTED"
	SubmissionGraded    = "GRADED"
)

// CompletionResult is the payload returned to the game client.
type CompletionResult struct {
	Status    string  `json:"status"` // success|retry|already_completed
	Score     float64 `json:"score"`
	Completed bool    `json:"completed"`
}

const (
	ResultSuccess          = "success"
	ResultRetry            = "retry"
	ResultAlreadyCompleted = "already_completed"
)
