// Package rules compiles declarative validation rules into predicates over
// submitted code. Validation is a shallow substring check, not analysis.
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FallbackMinLength is the length a submission must exceed when an exercise
// has no rules at all.
const FallbackMinLength = 500

const lengthPrefix = "length>"

// Kind tags a Rule variant.
type Kind int

const (
	KindInvalid Kind = iota
	KindContains
	KindAnyOf
	KindMinLength
)

func (k Kind) String() string {
	switch k {
	case KindContains:
		return "contains"
	case KindAnyOf:
		return "any_of"
	case KindMinLength:
		return "min_length"
	default:
		return "invalid"
	}
}

// Rule is one top-level validation entry.
type Rule struct {
	Kind Kind
	// Text is the required substring for KindContains.
	Text string
	// Options are the alternatives for KindAnyOf.
	Options []string
	// Length is the exclusive lower bound for KindMinLength.
	Length int
	// Raw keeps the source of an invalid entry for diagnostics.
	Raw string
}

// Contains requires code to contain s.
func Contains(s string) Rule { return Rule{Kind: KindContains, Text: s} }

// AnyOf requires code to contain at least one option.
func AnyOf(options ...string) Rule { return Rule{Kind: KindAnyOf, Options: options} }

// MinLength requires code to be longer than n characters.
func MinLength(n int) Rule { return Rule{Kind: KindMinLength, Length: n} }

// Invalid is an entry that matches nothing.
func Invalid(raw string) Rule { return Rule{Kind: KindInvalid, Raw: raw} }

// Match evaluates the rule against code.
func (r Rule) Match(code string) bool {
	switch r.Kind {
	case KindContains:
		return strings.Contains(code, r.Text)
	case KindAnyOf:
		for _, opt := range r.Options {
			if strings.Contains(code, opt) {
				return true
			}
		}
		return false
	case KindMinLength:
		return utf8.RuneCountInString(code) > r.Length
	default:
		return false
	}
}

func (r Rule) String() string {
	switch r.Kind {
	case KindContains:
		return strconv.Quote(r.Text)
	case KindAnyOf:
		quoted := make([]string, len(r.Options))
		for i, opt := range r.Options {
			quoted[i] = strconv.Quote(opt)
		}
		return "one of " + strings.Join(quoted, ", ")
	case KindMinLength:
		return fmt.Sprintf("more than %d characters", r.Length)
	default:
		return "invalid rule " + r.Raw
	}
}

// Predicate reports whether submitted code passes.
type Predicate func(code string) bool

// Compile builds a predicate that ANDs every rule. An empty rule set falls
// back to a length check.
func Compile(rules []Rule) Predicate {
	if len(rules) == 0 {
		fallback := MinLength(FallbackMinLength)
		return fallback.Match
	}

	compiled := make([]Rule, len(rules))
	copy(compiled, rules)

	return func(code string) bool {
		for _, r := range compiled {
			if !r.Match(code) {
				return false
			}
		}
		return true
	}
}

// CompileRaw decodes and compiles raw JSON rule entries.
func CompileRaw(raw []json.RawMessage) Predicate {
	return Compile(Decode(raw))
}

// Decode converts raw JSON entries into rules. It never fails: entries of an
// unknown shape decode to Invalid.
func Decode(raw []json.RawMessage) []Rule {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Rule, len(raw))
	for i, entry := range raw {
		out[i] = decodeOne(entry)
	}
	return out
}

func decodeOne(entry json.RawMessage) Rule {
	trimmed := bytes.TrimSpace(entry)
	if len(trimmed) == 0 {
		return Invalid("")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Invalid(string(trimmed))
		}
		return parseString(s)

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return Invalid(string(trimmed))
		}
		options := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return Invalid(string(trimmed))
			}
			options = append(options, s)
		}
		return AnyOf(options...)

	default:
		return Invalid(string(trimmed))
	}
}

// parseString maps a string entry to either the length sentinel or a
// substring rule.
func parseString(s string) Rule {
	if !strings.HasPrefix(s, lengthPrefix) {
		return Contains(s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(s, lengthPrefix)))
	if err != nil {
		return Invalid(strconv.Quote(s))
	}
	return MinLength(n)
}

// Outcome is the result of one rule against a submission.
type Outcome struct {
	Rule   Rule
	Passed bool
}

// Evaluate runs every rule and reports each outcome. With no rules it reports
// the fallback length rule.
func Evaluate(rules []Rule, code string) []Outcome {
	if len(rules) == 0 {
		fallback := MinLength(FallbackMinLength)
		return []Outcome{{Rule: fallback, Passed: fallback.Match(code)}}
	}
	out := make([]Outcome, len(rules))
	for i, r := range rules {
		out[i] = Outcome{Rule: r, Passed: r.Match(code)}
	}
	return out
}

// Unmet returns the rules that failed.
func Unmet(outcomes []Outcome) []Rule {
	var failed []Rule
	for _, o := range outcomes {
		if !o.Passed {
			failed = append(failed, o.Rule)
		}
	}
	return failed
}
