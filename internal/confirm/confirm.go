// Package confirm implements the interactive yes/no gates that guard a
// destructive run.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter asks yes/no questions on a line-based terminal. Streams are
// injectable for tests.
type Prompter struct {
	In  io.Reader
	Out io.Writer
}

// NewPrompter returns a Prompter on stdin/stderr. Prompts go to stderr so
// they never interleave with an audit log on stdout.
func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

// Ask prints the question and reads one line. Only "y" and "yes" (any case)
// count as affirmative; anything else, including EOF, is a decline.
func (p *Prompter) Ask(question string) (bool, error) {
	if _, err := fmt.Fprintf(p.Out, "%s [y/N]: ", question); err != nil {
		return false, fmt.Errorf("write prompt: %w", err)
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
