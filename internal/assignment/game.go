package assignment

import (
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidContent means structured content is not a JSON object at all.
	ErrInvalidContent = errors.New("invalid game content")
	// ErrUnknownGameType means the payload matches none of the known shapes.
	ErrUnknownGameType = errors.New("unknown game type")
)

// DetectGameType infers the game type from the structured payload's keys:
// "levels" marks a quiz, "word"/"words" hangman, "pairs" memory. Key presence
// decides, not value contents, to match how game payloads are produced.
func DetectGameType(structured json.RawMessage) (GameType, error) {
	if len(structured) == 0 {
		return GameNone, ErrUnknownGameType
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(structured, &keys); err != nil {
		return GameNone, ErrInvalidContent
	}
	switch {
	case hasKey(keys, "levels"):
		return GameQuiz, nil
	case hasKey(keys, "word"), hasKey(keys, "words"):
		return GameHangman, nil
	case hasKey(keys, "pairs"):
		return GameMemory, nil
	}
	return GameNone, ErrUnknownGameType
}

// GameTypeOf prefers the type tagged on the material at creation time and
// falls back to shape detection for rows created before tagging existed.
func GameTypeOf(m Material) (GameType, error) {
	switch m.GameType {
	case GameQuiz, GameHangman, GameMemory:
		return m.GameType, nil
	}
	return DetectGameType(m.StructuredContent)
}

func hasKey(m map[string]json.RawMessage, k string) bool {
	_, ok := m[k]
	return ok
}
