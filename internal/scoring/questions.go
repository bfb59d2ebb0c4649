package scoring

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadQuestions reads the question set from a JSON file. An empty path
// returns the built-in sample set so the server runs without any data files.
func LoadQuestions(path string) ([]Question, error) {
	if path == "" {
		return DefaultQuestions(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("question file %s is empty", path)
	}
	return questions, nil
}

// DefaultQuestions is the bundled sample question set.
func DefaultQuestions() []Question {
	return []Question{
		{ID: 1, Text: "Which planet is known as the Red Planet?", Answers: []string{"Mars", "Venus", "Jupiter", "Mercury"}, Correct: 0},
		{ID: 2, Text: "What is the chemical symbol for gold?", Answers: []string{"Ag", "Au", "Gd", "Go"}, Correct: 1},
		{ID: 3, Text: "How many continents are there on Earth?", Answers: []string{"Five", "Six", "Seven", "Eight"}, Correct: 2},
		{ID: 4, Text: "Which ocean is the largest?", Answers: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, Correct: 3},
		{ID: 5, Text: "What year did the first human land on the Moon?", Answers: []string{"1969", "1959", "1972", "1965"}, Correct: 0},
	}
}
