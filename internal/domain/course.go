package domain

import "encoding/json"

// CourseDocument is the full JSON payload describing one course.
// It is immutable once loaded and replaced wholesale on a course switch.
type CourseDocument struct {
	Info              CourseInfo        `json:"courseInfo"`
	WelcomeScreen     Fields            `json:"welcomeScreen"`
	IntroPopup        Fields            `json:"introPopup"`
	Sidebar           Fields            `json:"sidebar"`
	Exercises         []json.RawMessage `json:"exercises" validate:"min=1"`
	CompletionSummary Fields            `json:"completionSummary"`
}

// CourseInfo holds descriptive course metadata.
type CourseInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Level       string `json:"level,omitempty"`
	Author      string `json:"author,omitempty"`
}

// CourseSummary is one entry of the course index shown by the carousel.
type CourseSummary struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// Fields is a display-configuration block: named fields holding strings or
// lists of strings.
type Fields map[string]any

// String returns the field as a string, or "" when absent or not a string.
func (f Fields) String(key string) string {
	if s, ok := f[key].(string); ok {
		return s
	}
	return ""
}

// Strings returns the field as a list of strings. A single string value is
// returned as a one-element list; non-string list entries are skipped.
func (f Fields) Strings(key string) []string {
	switch v := f[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Has reports whether the field is present with a non-empty value.
func (f Fields) Has(key string) bool {
	switch v := f[key].(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return len(f.Strings(key)) > 0
	}
}
