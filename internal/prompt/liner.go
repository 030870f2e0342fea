package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// Liner prompts on the terminal with line editing and history. Ctrl-C and
// Ctrl-D close the input.
type Liner struct {
	state *liner.State
}

// NewLiner puts the terminal into line-editing mode. Call Close to restore it.
func NewLiner() *Liner {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	return &Liner{state: state}
}

func (l *Liner) Ask(prompt, def string) (string, error) {
	line, err := l.state.Prompt(formatPrompt(prompt, def))
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}

		return "", fmt.Errorf("%w: %w", ErrInputClosed, err)
	}

	if strings.TrimSpace(line) != "" {
		l.state.AppendHistory(line)
	}

	return resolve(line, def), nil
}

// Close restores the terminal.
func (l *Liner) Close() error {
	return l.state.Close()
}
