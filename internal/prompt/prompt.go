// Package prompt implements the operator-prompt collaborator: a blocking
// question that returns the operator's answer or a default.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInputClosed is returned once the operator's input is exhausted or the
// operator aborted the prompt.
var ErrInputClosed = errors.New("input stream closed")

// confirmWord accepts the default, same as empty input.
const confirmWord = "confirm"

// Prompter asks the operator a question. Empty input (or "confirm") returns
// def. Implementations return ErrInputClosed when no more input can arrive.
type Prompter interface {
	Ask(prompt, def string) (string, error)
}

// New picks a Prompter for in: a liner-backed prompt when in is a terminal
// stdin, a plain line reader otherwise. A nil in has no answers. The returned
// close function releases the terminal.
func New(in io.Reader, out io.Writer) (Prompter, func() error) {
	if in == nil {
		in = strings.NewReader("")
	}

	if f, ok := in.(*os.File); ok && f == os.Stdin && IsTerminal(f.Fd()) {
		l := NewLiner()

		return l, l.Close
	}

	return NewLines(in, out), func() error { return nil }
}

// IsYes reports whether answer is affirmative.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func formatPrompt(prompt, def string) string {
	if def == "" {
		return prompt + ": "
	}

	return fmt.Sprintf("%s [%s]: ", prompt, def)
}

func resolve(answer, def string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" || (def != "" && strings.EqualFold(answer, confirmWord)) {
		return def
	}

	return answer
}

// Lines reads answers line by line from any reader.
type Lines struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLines returns a Prompter that writes prompts to out and reads from in.
func NewLines(in io.Reader, out io.Writer) *Lines {
	return &Lines{in: bufio.NewReader(in), out: out}
}

func (l *Lines) Ask(prompt, def string) (string, error) {
	_, _ = fmt.Fprint(l.out, formatPrompt(prompt, def))

	line, err := l.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return resolve(line, def), nil
		}

		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}

		return "", fmt.Errorf("%w: %w", ErrInputClosed, err)
	}

	return resolve(line, def), nil
}

// Scripted answers from a fixed list and records every prompt. Once the list
// is used up it reports ErrInputClosed. An empty answer selects the default.
type Scripted struct {
	answers []string
	Asked   []string
}

// NewScripted returns a Scripted prompter replaying answers in order.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Ask(prompt, def string) (string, error) {
	s.Asked = append(s.Asked, prompt)

	if len(s.answers) == 0 {
		return "", ErrInputClosed
	}

	answer := s.answers[0]
	s.answers = s.answers[1:]

	return resolve(answer, def), nil
}

// Remaining returns the number of unused answers.
func (s *Scripted) Remaining() int {
	return len(s.answers)
}
