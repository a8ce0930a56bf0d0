package assignment

import "testing"

func fptr(f float64) *float64 { return &f }

func subWithScore(f float64) *Submission {
	return &Submission{ID: "sub-1", Score: fptr(f)}
}

func TestEvaluateFirstAttemptQuiz(t *testing.T) {
	cases := []struct {
		name      string
		score     float64
		completed bool
		graded    bool
	}{
		{"pass at threshold", 80, true, true},
		{"fail just below threshold", 79, false, false},
		{"zero score", 0, false, false},
		{"full score", 100, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Evaluate(EvalInput{GameType: GameQuiz, Status: StatusInProgress, Score: tc.score})
			if !out.CreateSubmission {
				t.Fatal("first attempt must always create a submission")
			}
			if out.UpdateLatestScore {
				t.Fatal("first attempt must not update in place")
			}
			if out.SetGraded != tc.graded {
				t.Fatalf("SetGraded = %v, want %v", out.SetGraded, tc.graded)
			}
			if out.Result.Status != ResultSuccess {
				t.Fatalf("status = %q, want success", out.Result.Status)
			}
			if out.Result.Completed != tc.completed {
				t.Fatalf("completed = %v, want %v", out.Result.Completed, tc.completed)
			}
			if out.Result.Score != tc.score {
				t.Fatalf("score = %v, want %v", out.Result.Score, tc.score)
			}
		})
	}
}

func TestEvaluateFirstAttemptNonQuiz(t *testing.T) {
	for _, gt := range []GameType{GameHangman, GameMemory} {
		out := Evaluate(EvalInput{GameType: gt, Status: StatusAssigned, Score: 3})
		if !out.CreateSubmission || !out.SetGraded {
			t.Fatalf("%s: want submission + graded on any score, got %+v", gt, out)
		}
		if !out.Result.Completed || out.Result.Status != ResultSuccess {
			t.Fatalf("%s: unexpected result %+v", gt, out.Result)
		}
	}
}

func TestEvaluateGradedQuizIdempotentWhenPassed(t *testing.T) {
	out := Evaluate(EvalInput{GameType: GameQuiz, Status: StatusGraded, Latest: subWithScore(85), Score: 100})
	if out.CreateSubmission || out.UpdateLatestScore || out.SetGraded {
		t.Fatalf("passed quiz retry must not mutate, got %+v", out)
	}
	if out.Result.Status != ResultAlreadyCompleted {
		t.Fatalf("status = %q, want already_completed", out.Result.Status)
	}
	if out.Result.Score != 85 {
		t.Fatalf("score = %v, want original 85", out.Result.Score)
	}
	if !out.Result.Completed {
		t.Fatal("completed should be true")
	}
}

func TestEvaluateGradedQuizImprovement(t *testing.T) {
	// best prior 60, new 70: update in place, still retry
	out := Evaluate(EvalInput{GameType: GameQuiz, Status: StatusGraded, Latest: subWithScore(60), Score: 70})
	if !out.UpdateLatestScore || out.CreateSubmission {
		t.Fatalf("improved score should update the latest submission, got %+v", out)
	}
	if out.SetGraded {
		t.Fatal("sub-threshold improvement must not re-grade")
	}
	if out.Result.Status != ResultRetry || out.Result.Completed {
		t.Fatalf("unexpected result %+v", out.Result)
	}

	// then 85: update again and pass
	out = Evaluate(EvalInput{GameType: GameQuiz, Status: StatusGraded, Latest: subWithScore(70), Score: 85})
	if !out.UpdateLatestScore || !out.SetGraded {
		t.Fatalf("passing improvement should update and grade, got %+v", out)
	}
	if out.Result.Status != ResultSuccess || !out.Result.Completed || out.Result.Score != 85 {
		t.Fatalf("unexpected result %+v", out.Result)
	}
}

func TestEvaluateGradedQuizWorseScoreNoWrite(t *testing.T) {
	out := Evaluate(EvalInput{GameType: GameQuiz, Status: StatusGraded, Latest: subWithScore(60), Score: 50})
	if out.CreateSubmission || out.UpdateLatestScore || out.SetGraded {
		t.Fatalf("worse score must not mutate, got %+v", out)
	}
	if out.Result.Status != ResultRetry || out.Result.Completed {
		t.Fatalf("unexpected result %+v", out.Result)
	}
}

func TestEvaluateGradedQuizNoSubmission(t *testing.T) {
	// graded assignment with no submission rows: create one
	out := Evaluate(EvalInput{GameType: GameQuiz, Status: StatusGraded, Latest: nil, Score: 90})
	if !out.CreateSubmission || out.UpdateLatestScore {
		t.Fatalf("missing submission should be created, got %+v", out)
	}
	if !out.SetGraded || out.Result.Status != ResultSuccess {
		t.Fatalf("unexpected result %+v", out.Result)
	}
}

func TestEvaluateGradedNonQuiz(t *testing.T) {
	out := Evaluate(EvalInput{GameType: GameMemory, Status: StatusGraded, Latest: subWithScore(7), Score: 10})
	if out.CreateSubmission || out.UpdateLatestScore || out.SetGraded {
		t.Fatalf("graded non-quiz retry must not mutate, got %+v", out)
	}
	if out.Result.Status != ResultAlreadyCompleted || out.Result.Score != 7 {
		t.Fatalf("unexpected result %+v", out.Result)
	}

	// no submission at all reports score 0
	out = Evaluate(EvalInput{GameType: GameHangman, Status: StatusGraded, Score: 10})
	if out.Result.Score != 0 || out.Result.Status != ResultAlreadyCompleted {
		t.Fatalf("unexpected result %+v", out.Result)
	}
}

func TestNextStatusForDraft(t *testing.T) {
	cases := []struct {
		name    string
		current Status
		draft   string
		want    Status
		wantErr error
	}{
		{"first touch", StatusAssigned, "hello", StatusInProgress, nil},
		{"empty draft keeps assigned", StatusAssigned, "", StatusAssigned, nil},
		{"in progress stays", StatusInProgress, "more text", StatusInProgress, nil},
		{"submitted is locked", StatusSubmitted, "late edit", StatusSubmitted, ErrLocked},
		{"graded is locked", StatusGraded, "late edit", StatusGraded, ErrLocked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextStatusForDraft(tc.current, tc.draft)
			if err != tc.wantErr {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("status = %q, want %q", got, tc.want)
			}
		})
	}
}
