package rules

import (
	"encoding/json"
	"strings"
	"testing"
)

func raw(t *testing.T, src string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	if err := json.Unmarshal([]byte(src), &out); err != nil {
		t.Fatalf("unmarshal %s: %v", src, err)
	}
	return out
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Kind
	}{
		{"string", `["display: flex"]`, []Kind{KindContains}},
		{"any of", `[["bar","baz"]]`, []Kind{KindAnyOf}},
		{"length", `["length>20"]`, []Kind{KindMinLength}},
		{"length with spaces", `["length> 20"]`, []Kind{KindMinLength}},
		{"bad length", `["length>abc"]`, []Kind{KindInvalid}},
		{"number", `[42]`, []Kind{KindInvalid}},
		{"object", `[{"contains":"x"}]`, []Kind{KindInvalid}},
		{"empty list", `[[]]`, []Kind{KindInvalid}},
		{"nested list", `[["a",["b"]]]`, []Kind{KindInvalid}},
		{"null", `[null]`, []Kind{KindInvalid}},
		{"mixed", `["a",["b","c"],"length>3",true]`, []Kind{KindContains, KindAnyOf, KindMinLength, KindInvalid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(raw(t, tt.src))
			if len(got) != len(tt.want) {
				t.Fatalf("Decode(%s) returned %d rules, want %d", tt.src, len(got), len(tt.want))
			}
			for i, r := range got {
				if r.Kind != tt.want[i] {
					t.Errorf("rule %d kind = %v, want %v", i, r.Kind, tt.want[i])
				}
			}
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	if got := Decode(nil); got != nil {
		t.Errorf("Decode(nil) = %v, want nil", got)
	}
}

func TestCompile_Fallback(t *testing.T) {
	validate := Compile(nil)

	if validate(strings.Repeat("x", 500)) {
		t.Error("500 characters passed the fallback, want > 500 required")
	}
	if !validate(strings.Repeat("x", 501)) {
		t.Error("501 characters failed the fallback")
	}
	if validate("") {
		t.Error("empty code passed the fallback")
	}
}

func TestCompile_FallbackCountsCharacters(t *testing.T) {
	validate := Compile(nil)

	// 300 two-byte runes: 600 bytes but only 300 characters.
	if validate(strings.Repeat("é", 300)) {
		t.Error("fallback counted bytes instead of characters")
	}
}

func TestCompile_ContainsAndAnyOf(t *testing.T) {
	validate := CompileRaw(raw(t, `["a",["b","c"]]`))

	tests := []struct {
		code string
		want bool
	}{
		{"ab", true},
		{"ac", true},
		{"abc", true},
		{"a", false},
		{"bc", false},
		{"", false},
		{"xyz", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := validate(tt.code); got != tt.want {
				t.Errorf("validate(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestCompile_MinLength(t *testing.T) {
	validate := CompileRaw(raw(t, `["length>5","x"]`))

	if validate("xxxxx") {
		t.Error("validate(5 chars) = true, want false")
	}
	if !validate("xxxxxx") {
		t.Error("validate(6 chars) = false, want true")
	}
	if validate("yyyyyyyy") {
		t.Error("validate without x = true, want false")
	}
}

func TestCompile_InvalidIsAlwaysFalse(t *testing.T) {
	inputs := []string{
		`[42]`,
		`["length>abc"]`,
		`[[]]`,
		`[{"a":1}]`,
		`["a", [1, 2]]`,
	}

	for _, src := range inputs {
		t.Run(src, func(t *testing.T) {
			validate := CompileRaw(raw(t, src))
			for _, code := range []string{"", "a", strings.Repeat("a 1 2", 200)} {
				if validate(code) {
					t.Errorf("validate(%q) = true for %s", code, src)
				}
			}
		})
	}
}

func TestCompile_NeverPanics(t *testing.T) {
	inputs := []string{
		`[]`,
		`[null]`,
		`[true,false]`,
		`[[[]]]`,
		`[""]`,
		`["length>"]`,
		`["length>-1"]`,
		`["length>99999999999999999999999"]`,
		`[{"nested":{"deep":[1,2,3]}}]`,
		`[1.5, "x", ["y", null]]`,
	}

	for _, src := range inputs {
		t.Run(src, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Compile panicked on %s: %v", src, r)
				}
			}()
			validate := CompileRaw(raw(t, src))
			_ = validate("some code")
		})
	}
}

func TestCompile_EmptyLiteralIsContained(t *testing.T) {
	validate := CompileRaw(raw(t, `[""]`))
	if !validate("") {
		t.Error(`validate("") = false, want true for empty literal`)
	}
}

func TestCompile_CopiesRules(t *testing.T) {
	rules := []Rule{Contains("a")}
	validate := Compile(rules)
	rules[0] = Contains("z")

	if !validate("a") {
		t.Error("predicate changed after mutating the input slice")
	}
}

func TestEvaluate(t *testing.T) {
	rules := Decode(raw(t, `["a",["b","c"],"length>10"]`))
	outcomes := Evaluate(rules, "ab")

	if len(outcomes) != 3 {
		t.Fatalf("Evaluate returned %d outcomes, want 3", len(outcomes))
	}
	unmet := Unmet(outcomes)
	if len(unmet) != 1 || unmet[0].Kind != KindMinLength {
		t.Errorf("Unmet = %v, want the length rule", unmet)
	}
}

func TestEvaluate_Fallback(t *testing.T) {
	outcomes := Evaluate(nil, "short")
	if len(outcomes) != 1 || outcomes[0].Passed {
		t.Fatalf("Evaluate(nil) = %+v, want one failed fallback outcome", outcomes)
	}
	if outcomes[0].Rule.Length != FallbackMinLength {
		t.Errorf("fallback length = %d, want %d", outcomes[0].Rule.Length, FallbackMinLength)
	}
}

func TestRule_String(t *testing.T) {
	tests := []struct {
		rule Rule
		want string
	}{
		{Contains("flex"), `"flex"`},
		{AnyOf("bar", "baz"), `one of "bar", "baz"`},
		{MinLength(20), "more than 20 characters"},
		{Invalid("42"), "invalid rule 42"},
	}

	for _, tt := range tests {
		if got := tt.rule.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
