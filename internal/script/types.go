package script

import "time"

// Script is one dialog with a program under test.
type Script struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Entry       string        `yaml:"entry" json:"entry"`
	Args        []string      `yaml:"args,omitempty" json:"args,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Steps       []Step        `yaml:"steps" json:"steps"`
}

// Step holds exactly one action. Pointer fields distinguish an empty
// value from an absent one.
type Step struct {
	Expect         *string  `yaml:"expect,omitempty" json:"expect,omitempty"`
	ExpectContains []string `yaml:"expect_contains,omitempty" json:"expect_contains,omitempty"`
	ExpectPrefix   string   `yaml:"expect_prefix,omitempty" json:"expect_prefix,omitempty"`
	ExpectSuffix   string   `yaml:"expect_suffix,omitempty" json:"expect_suffix,omitempty"`
	ExpectRegex    string   `yaml:"expect_regex,omitempty" json:"expect_regex,omitempty"`
	ExpectError    string   `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`
	SkipUntil      string   `yaml:"skip_until,omitempty" json:"skip_until,omitempty"`
	Send           *string  `yaml:"send,omitempty" json:"send,omitempty"`
	SendLine       *string  `yaml:"send_line,omitempty" json:"send_line,omitempty"`
	ReadAll        bool     `yaml:"read_all,omitempty" json:"read_all,omitempty"`
	ReadErrors     bool     `yaml:"read_errors,omitempty" json:"read_errors,omitempty"`
	Kill           bool     `yaml:"kill,omitempty" json:"kill,omitempty"`
	ExitCode       *int     `yaml:"exit_code,omitempty" json:"exit_code,omitempty"`
	// Quiet leaves the transcript out of an assertion failure.
	Quiet bool `yaml:"quiet,omitempty" json:"quiet,omitempty"`
}

// Action names the step's single action.
func (s Step) Action() string {
	actions := s.actions()
	if len(actions) != 1 {
		return ""
	}
	return actions[0]
}

func (s Step) actions() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(s.Expect != nil, "expect")
	add(s.ExpectContains != nil, "expect_contains")
	add(s.ExpectPrefix != "", "expect_prefix")
	add(s.ExpectSuffix != "", "expect_suffix")
	add(s.ExpectRegex != "", "expect_regex")
	add(s.ExpectError != "", "expect_error")
	add(s.SkipUntil != "", "skip_until")
	add(s.Send != nil, "send")
	add(s.SendLine != nil, "send_line")
	add(s.ReadAll, "read_all")
	add(s.ReadErrors, "read_errors")
	add(s.Kill, "kill")
	add(s.ExitCode != nil, "exit_code")
	return out
}

// Status is the outcome of a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	// StatusFailed means the program misbehaved: an expectation was not
	// met, output ended early, or the exit code was wrong.
	StatusFailed Status = "failed"
	// StatusError means the dialog could not be carried out at all.
	StatusError Status = "error"
)

// Result describes one execution of a script.
type Result struct {
	RunID      string    `json:"run_id"`
	Script     string    `json:"script"`
	Entry      string    `json:"entry"`
	Status     Status    `json:"status"`
	FailedStep int       `json:"failed_step"`
	Failure    string    `json:"failure,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Transcript string    `json:"transcript"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Passed reports whether every step succeeded.
func (r *Result) Passed() bool { return r.Status == StatusPassed }
