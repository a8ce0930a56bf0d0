package assignment

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDetectGameType(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    GameType
		wantErr error
	}{
		{"quiz by levels", `{"difficulty":"medium","levels":[{"question":"?"}]}`, GameQuiz, nil},
		{"quiz with empty levels still quiz", `{"levels":[]}`, GameQuiz, nil},
		{"hangman by words", `{"topic":"animals","words":["kissa","koira"]}`, GameHangman, nil},
		{"hangman by legacy word key", `{"word":"kissa"}`, GameHangman, nil},
		{"memory by pairs", `{"pairs":[{"q":"1+1","a":"2"}]}`, GameMemory, nil},
		{"levels wins over pairs", `{"levels":[],"pairs":[]}`, GameQuiz, nil},
		{"unknown keys", `{"cards":[]}`, GameNone, ErrUnknownGameType},
		{"empty object", `{}`, GameNone, ErrUnknownGameType},
		{"empty payload", ``, GameNone, ErrUnknownGameType},
		{"not an object", `[1,2,3]`, GameNone, ErrInvalidContent},
		{"broken json", `{"levels":`, GameNone, ErrInvalidContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectGameType(json.RawMessage(tc.payload))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("type = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGameTypeOfPrefersTag(t *testing.T) {
	// tagged type wins even when the payload shape says otherwise
	m := Material{GameType: GameHangman, StructuredContent: json.RawMessage(`{"levels":[]}`)}
	gt, err := GameTypeOf(m)
	if err != nil {
		t.Fatal(err)
	}
	if gt != GameHangman {
		t.Fatalf("type = %q, want hangman", gt)
	}

	// untagged rows fall back to detection
	m = Material{StructuredContent: json.RawMessage(`{"pairs":[]}`)}
	gt, err = GameTypeOf(m)
	if err != nil {
		t.Fatal(err)
	}
	if gt != GameMemory {
		t.Fatalf("type = %q, want memory", gt)
	}
}
