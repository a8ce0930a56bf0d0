package ai

import (
	"fmt"
	"strings"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
)

// questionCounts maps quiz difficulty to question count.
var questionCounts = map[string]int{
	"easy":   5,
	"medium": 10,
	"hard":   15,
}

const (
	hangmanWordCount = 30
	memoryPairCount  = 10
)

// ValidSubjects is the fixed list of Finnish basic-education curriculum
// subjects the metadata generator may pick from.
var ValidSubjects = []string{
	"Äidinkieli ja kirjallisuus",
	"Matematiikka",
	"Ympäristöoppi",
	"Ruotsi",
	"Englanti",
	"Fysiikka",
	"Kemia",
	"Maantieto",
	"Kotitalous",
	"Terveystieto",
	"Liikunta",
	"Musiikki",
	"Kuvataide",
	"Käsityö",
	"Uskonto tai elämänkatsomustieto",
	"Historia",
	"Yhteiskuntaoppi",
}

// DefaultSubject is used when metadata generation fails or returns a subject
// outside ValidSubjects.
const DefaultSubject = "Ympäristöoppi"

func gamePrompt(topic string, gt assignment.GameType, difficulty string) (string, error) {
	switch gt {
	case assignment.GameQuiz:
		n, ok := questionCounts[difficulty]
		if !ok {
			n = questionCounts["medium"]
		}
		return fmt.Sprintf(`Act as a primary school teacher and textbook author writing in Finnish.
Write EXACTLY %d high-quality multiple-choice questions about: %q
Rules:
1. Facts must be correct.
2. Questions must be clear and unambiguous.
3. Exactly one choice per question is correct.
4. The "correct" index must point at the right entry of the "choices" array.
Return ONLY a JSON object, all text in Finnish, with this structure:
{"difficulty":%q,"levels":[{"question":"...","choices":["...","...","...","..."],"correct":0}]}`,
			n, topic, difficulty), nil

	case assignment.GameHangman:
		return fmt.Sprintf(`Act as a Finnish primary school teacher. Give EXACTLY %d Finnish words about %q for a hangman game.
Rules:
1. Every word fits the topic.
2. Letters only (A-Ö), 4-12 characters.
3. Everyday vocabulary, no jargon.
4. Mixed difficulty, no duplicates.
Return ONLY JSON: {"topic":%q,"words":["word1","word2"]}`,
			hangmanWordCount, topic, topic), nil

	case assignment.GameMemory:
		return fmt.Sprintf(`Act as a Finnish primary school teacher. Write EXACTLY %d memory-game card pairs about: %q
Rules:
1. Every answer is unique.
2. Every question is unique.
3. Texts are short (max 15 characters), in Finnish.
Return ONLY JSON: {"pairs":[{"question":"...","answer":"..."}]}`,
			memoryPairCount, topic), nil
	}
	return "", fmt.Errorf("no prompt for game type %q", gt)
}

func metadataPrompt(name, topic string) string {
	var b strings.Builder
	for _, s := range ValidSubjects {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return fmt.Sprintf(`You are given a game's type and topic. Produce:
1. A short, inviting Finnish title (max 20 characters).
2. The subject under the Finnish basic education curriculum.

Game type: %s
Topic: %s

The subject MUST be one of:
%s
Pick the subject that best matches the topic; if none fits, pick %q.
Return ONLY JSON, exactly: {"title":"...","subject":"..."}`,
		name, topic, b.String(), DefaultSubject)
}
