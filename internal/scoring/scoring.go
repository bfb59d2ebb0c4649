// Package scoring turns answer selections into a score. It is pure and
// stateless: the same questions and selections always produce the same
// outcome, and inputs are never mutated. The server runs it authoritatively;
// clients may run it only for display.
package scoring

import "strconv"

// Question is the full question record including the answer key. It must
// never cross the API boundary before submission; use Public for that.
type Question struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
	Correct int      `json:"correct"`
}

// PublicQuestion is a Question with the answer key stripped.
type PublicQuestion struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
}

// Selections maps a question ID (as a string, matching the wire format) to
// the chosen answer index, or nil when the question was left unanswered.
type Selections map[string]*int

// ResultItem records the outcome for one question.
type ResultItem struct {
	ID        int  `json:"id"`
	Correct   int  `json:"correct"`
	Selection *int `json:"selection"`
	IsCorrect bool `json:"isCorrect"`
}

// Outcome is the result of scoring one submission.
type Outcome struct {
	Score   int          `json:"score"`
	Results []ResultItem `json:"results"`
}

// Public strips the answer key from every question.
func Public(questions []Question) []PublicQuestion {
	out := make([]PublicQuestion, len(questions))
	for i, q := range questions {
		out[i] = PublicQuestion{ID: q.ID, Text: q.Text, Answers: q.Answers}
	}
	return out
}

// Score looks up each question's selection by ID (missing or explicit null
// both count as unanswered) and compares it to the answer key. The score is
// the number of correct answers.
func Score(questions []Question, selections Selections) Outcome {
	results := make([]ResultItem, len(questions))
	score := 0

	for i, q := range questions {
		sel := selections[strconv.Itoa(q.ID)]
		isCorrect := sel != nil && *sel == q.Correct
		if isCorrect {
			score++
		}
		results[i] = ResultItem{
			ID:        q.ID,
			Correct:   q.Correct,
			Selection: sel,
			IsCorrect: isCorrect,
		}
	}

	return Outcome{Score: score, Results: results}
}
