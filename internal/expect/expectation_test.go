package expect

import "testing"

func TestExpectations(t *testing.T) {
	re, err := Regexp(`^Hello, \w+$`)
	if err != nil {
		t.Fatalf("Regexp() error = %v", err)
	}
	tests := []struct {
		name string
		exp  Expectation
		line string
		want bool
	}{
		{"equals match", Equals("Hello, Alice"), "Hello, Alice", true},
		{"equals is exact", Equals("Hello, Alice"), "Hello, Alice ", false},
		{"contains all any order", ContainsAll("Alice", "Hello"), "Hello, Alice", true},
		{"contains all missing one", ContainsAll("Hello", "Bob"), "Hello, Alice", false},
		{"contains nothing", ContainsAll(), "anything", true},
		{"prefix", HasPrefix("TARGET"), "TARGET: go", true},
		{"suffix", HasSuffix("go"), "TARGET: stop", false},
		{"regexp", re, "Hello, Alice", true},
		{"regexp miss", re, "Hello, Alice!", false},
		{"all", All(HasPrefix("a"), HasSuffix("z")), "abcz", true},
		{"all fails", All(HasPrefix("a"), HasSuffix("z")), "abc", false},
		{"any", Any(Equals("x"), Equals("y")), "y", true},
		{"not", Not(Equals("x")), "x", false},
		{"satisfies", Satisfies("even length", func(l string) bool { return len(l)%2 == 0 }), "ab", true},
		{"nil predicate", Expectation{Description: "anything"}, "z", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.exp.Test(tt.line); got != tt.want {
				t.Fatalf("%s.Test(%q) = %v, want %v", tt.exp, tt.line, got, tt.want)
			}
		})
	}
}

func TestRegexpInvalid(t *testing.T) {
	if _, err := Regexp("("); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestDescriptions(t *testing.T) {
	tests := map[string]Expectation{
		`equals "a"`:                        Equals("a"),
		`contains "a""b"`:                   ContainsAll("a", "b"),
		`(starts with "a") or (equals "b")`: Any(HasPrefix("a"), Equals("b")),
		`not (ends with "c")`:               Not(HasSuffix("c")),
	}
	for want, exp := range tests {
		if exp.Description != want {
			t.Fatalf("Description = %q, want %q", exp.Description, want)
		}
	}
}
