package domain

import "encoding/json"

// ExerciseSpec is one exercise entry of a course document, in document order.
type ExerciseSpec struct {
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description"`
	Objectives   []string `json:"objectives"`
	StarterCode  string   `json:"starterCode"`
	SolutionCode string   `json:"solutionCode"`
	Hint         string   `json:"hint"`

	// Preamble fields
	PreambleTitle  string   `json:"preambleTitle"`
	PreambleIntro  string   `json:"preambleIntro"`
	KeyConcepts    []string `json:"keyConcepts"`
	CommonPitfalls []string `json:"commonPitfalls"`
	Prerequisites  string   `json:"prerequisites"`
	VideoFile      string   `json:"videoFile,omitempty"`

	// ValidationRules holds the raw rule entries: a string, a list of
	// strings, or a "length>N" sentinel.
	ValidationRules []json.RawMessage `json:"validationRules,omitempty"`
}

// DisplayTitle returns the preamble title, falling back to the exercise title.
func (s ExerciseSpec) DisplayTitle() string {
	if s.PreambleTitle != "" {
		return s.PreambleTitle
	}
	return s.Title
}
