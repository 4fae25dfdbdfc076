// Package console drives one program under test through its standard
// streams.
//
// A Session owns the child process, a line queue per output stream and a
// transcript of every line sent or consumed. Reads block the caller until a
// line is available, the stream ends, or the context is done; each stream
// is drained by its own goroutine, so a program that writes heavily to
// stderr while the caller waits on stdout does not stall on a full pipe.
//
// A Session is meant for a single caller. Kill may be called from another
// goroutine to abort a blocked read.
//
//	l, _ := launcher.Self()
//	s, err := console.Start(ctx, l, "greeter", nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	line, ok, err := s.NextNonEmptyLine(ctx, console.Stdout)
package console
