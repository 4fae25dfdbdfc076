package expect

import (
	"context"

	"github.com/user/dialogtest/internal/console"
	"github.com/user/dialogtest/internal/transcript"
)

// scripted replays fixed stdout and stderr lines and records what it
// hands out, like a console session would.
type scripted struct {
	out, err []string
	log      transcript.Transcript
}

func (s *scripted) NextNonEmptyLine(_ context.Context, stream console.Stream) (string, bool, error) {
	src, dir := &s.out, transcript.Out
	if stream == console.Stderr {
		src, dir = &s.err, transcript.Err
	}
	for len(*src) > 0 {
		line := (*src)[0]
		*src = (*src)[1:]
		s.log.Append(dir, line)
		if line != "" {
			return line, true, nil
		}
	}
	return "", false, nil
}

func (s *scripted) FullTranscript() string { return s.log.Render() }
