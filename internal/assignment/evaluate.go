package assignment

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	// ErrLocked is returned for drafts and submissions against an assignment
	// that already reached SUBMITTED or GRADED.
	ErrLocked = errors.New("locked")
)

// EvalInput is the snapshot the completion decision runs against. Latest is
// the most recently created submission, nil when none exists yet.
type EvalInput struct {
	GameType GameType
	Status   Status
	Latest   *Submission
	Score    float64
}

// EvalOutcome describes the mutations a store must apply and the result to
// return. At most one of CreateSubmission / UpdateLatestScore is set.
type EvalOutcome struct {
	Result            CompletionResult
	CreateSubmission  bool
	UpdateLatestScore bool
	SetGraded         bool
}

// Evaluate applies the game-completion rules to a snapshot of an assignment.
// It is a pure decision: stores run it inside their own read-modify-write
// boundary (a transaction with a row lock for SQL) and apply the outcome.
//
// Rules:
//   - First attempt (status not GRADED): a submission recording the score is
//     always created. Quizzes grade only at QuizPassScore or above; hangman
//     and memory grade on any score.
//   - Repeat attempt on a graded quiz: a stored passing score short-circuits
//     as already_completed. Otherwise an improved score updates the latest
//     submission in place (or creates one when none exists), and the attempt
//     reports success or retry against the threshold.
//   - Repeat attempt on a graded non-quiz game never mutates anything.
func Evaluate(in EvalInput) EvalOutcome {
	if in.Status == StatusGraded {
		return evaluateRepeat(in)
	}

	out := EvalOutcome{CreateSubmission: true}
	completed := true
	if in.GameType == GameQuiz {
		completed = in.Score >= QuizPassScore
	}
	if completed {
		out.SetGraded = true
	}
	out.Result = CompletionResult{Status: ResultSuccess, Score: in.Score, Completed: completed}
	return out
}

func evaluateRepeat(in EvalInput) EvalOutcome {
	if in.GameType != GameQuiz {
		score := 0.0
		if in.Latest != nil && in.Latest.Score != nil {
			score = *in.Latest.Score
		}
		return EvalOutcome{Result: CompletionResult{
			Status: ResultAlreadyCompleted, Score: score, Completed: true,
		}}
	}

	// A stored passing score wins; the retry is idempotent.
	if in.Latest != nil && in.Latest.Score != nil && *in.Latest.Score >= QuizPassScore {
		return EvalOutcome{Result: CompletionResult{
			Status: ResultAlreadyCompleted, Score: *in.Latest.Score, Completed: true,
		}}
	}

	var out EvalOutcome
	switch {
	case in.Latest == nil:
		out.CreateSubmission = true
	case scoreOrZero(in.Latest) < in.Score:
		out.UpdateLatestScore = true
	}

	if in.Score >= QuizPassScore {
		out.SetGraded = true
		out.Result = CompletionResult{Status: ResultSuccess, Score: in.Score, Completed: true}
	} else {
		out.Result = CompletionResult{Status: ResultRetry, Score: in.Score, Completed: false}
	}
	return out
}

// NextStatusForDraft decides the autosave status transition. A non-empty
// draft on a fresh assignment is the first-touch transition to IN_PROGRESS;
// locked assignments reject the save outright.
func NextStatusForDraft(current Status, draft string) (Status, error) {
	if current == StatusSubmitted || current == StatusGraded {
		return current, ErrLocked
	}
	if draft != "" && current == StatusAssigned {
		return StatusInProgress, nil
	}
	return current, nil
}

func scoreOrZero(s *Submission) float64 {
	if s == nil || s.Score == nil {
		return 0
	}
	return *s.Score
}
