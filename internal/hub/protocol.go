package hub

// RunMessage announces a run starting or finishing.
type RunMessage struct {
	Type     string `json:"type"`
	RunID    string `json:"run_id"`
	Script   string `json:"script"`
	Entry    string `json:"entry,omitempty"`
	Status   string `json:"status"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Failure  string `json:"failure,omitempty"`
	Ts       int64  `json:"ts"`
}

// RunsMessage lists the runs in progress; it is the first message a
// watcher receives.
type RunsMessage struct {
	Type string       `json:"type"`
	List []RunMessage `json:"list"`
}

type EntryMessage struct {
	Seq       int64  `json:"seq"`
	Direction string `json:"direction"`
	Text      string `json:"text"`
	Ts        int64  `json:"ts"`
}

// EntriesMessage carries transcript entries of one run in sequence order.
type EntriesMessage struct {
	Type    string         `json:"type"`
	RunID   string         `json:"run_id"`
	Entries []EntryMessage `json:"entries"`
}

type ClientMessage struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
