package expect

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate reports whether a single output line is acceptable.
type Predicate func(line string) bool

// Expectation is a predicate with a human-readable description used in
// failure messages.
type Expectation struct {
	Description string
	Match       Predicate
}

func (e Expectation) String() string { return e.Description }

// Test applies the predicate. A nil predicate accepts every line.
func (e Expectation) Test(line string) bool {
	if e.Match == nil {
		return true
	}
	return e.Match(line)
}

// Equals accepts exactly want.
func Equals(want string) Expectation {
	return Expectation{
		Description: fmt.Sprintf("equals %q", want),
		Match:       func(line string) bool { return line == want },
	}
}

// ContainsAll accepts a line containing every substring, in any order.
// With no substrings it accepts every line.
func ContainsAll(substrings ...string) Expectation {
	subs := append([]string(nil), substrings...)
	return Expectation{
		Description: "contains " + quoteAll(subs),
		Match: func(line string) bool {
			for _, s := range subs {
				if !strings.Contains(line, s) {
					return false
				}
			}
			return true
		},
	}
}

// HasPrefix accepts a line starting with prefix.
func HasPrefix(prefix string) Expectation {
	return Expectation{
		Description: fmt.Sprintf("starts with %q", prefix),
		Match:       func(line string) bool { return strings.HasPrefix(line, prefix) },
	}
}

// HasSuffix accepts a line ending with suffix.
func HasSuffix(suffix string) Expectation {
	return Expectation{
		Description: fmt.Sprintf("ends with %q", suffix),
		Match:       func(line string) bool { return strings.HasSuffix(line, suffix) },
	}
}

// Regexp accepts a line matched by pattern.
func Regexp(pattern string) (Expectation, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Expectation{}, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return Expectation{
		Description: fmt.Sprintf("matches /%s/", pattern),
		Match:       re.MatchString,
	}, nil
}

// Satisfies wraps an arbitrary predicate.
func Satisfies(description string, match Predicate) Expectation {
	return Expectation{Description: description, Match: match}
}

// All accepts a line every expectation accepts.
func All(exps ...Expectation) Expectation {
	return Expectation{
		Description: joinDescriptions(exps, " and "),
		Match: func(line string) bool {
			for _, e := range exps {
				if !e.Test(line) {
					return false
				}
			}
			return true
		},
	}
}

// Any accepts a line at least one expectation accepts.
func Any(exps ...Expectation) Expectation {
	return Expectation{
		Description: joinDescriptions(exps, " or "),
		Match: func(line string) bool {
			for _, e := range exps {
				if e.Test(line) {
					return true
				}
			}
			return false
		},
	}
}

// Not inverts e.
func Not(e Expectation) Expectation {
	return Expectation{
		Description: "not (" + e.Description + ")",
		Match:       func(line string) bool { return !e.Test(line) },
	}
}

func joinDescriptions(exps []Expectation, sep string) string {
	parts := make([]string, len(exps))
	for i, e := range exps {
		parts[i] = "(" + e.Description + ")"
	}
	return strings.Join(parts, sep)
}

func quoteAll(values []string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(`"` + v + `"`)
	}
	return b.String()
}
