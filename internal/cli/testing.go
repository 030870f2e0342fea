package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/calvinalkan/clsync/internal/config"
	"github.com/calvinalkan/clsync/internal/jira"
	"github.com/calvinalkan/clsync/internal/prompt"
	"github.com/calvinalkan/clsync/internal/tracker"
	"github.com/calvinalkan/clsync/internal/tracker/trackertest"
)

// CLI provides a clean interface for running CLI commands in tests.
// It manages a temp directory, environment variables and an in-memory
// tracker standing in for Jira.
type CLI struct {
	t       *testing.T
	Dir     string
	Env     map[string]string
	Tracker *trackertest.Fake
}

// NewCLI creates a new test CLI with a temp directory and a tracker token set.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	return &CLI{
		t:       t,
		Dir:     t.TempDir(),
		Env:     map[string]string{"JIRA_TOKEN": "test-token"},
		Tracker: trackertest.NewFake(),
	}
}

func (r *CLI) deps() deps {
	return deps{
		connect: func(cfg config.Jira, env map[string]string, _ *zap.Logger) (tracker.Client, error) {
			if env[cfg.TokenEnv] == "" {
				return nil, fmt.Errorf("%w: set $%s", jira.ErrMissingCredential, cfg.TokenEnv)
			}

			return r.Tracker, nil
		},
		prompter: func(in io.Reader, out io.Writer) (prompt.Prompter, func() error) {
			return prompt.NewLines(in, out), func() error { return nil }
		},
		markdown: func(io.Writer) bool { return false },
	}
}

// Run executes the CLI with the given args and no input, returning stdout,
// stderr and exit code. Args should not include "clsync" or "--cwd".
func (r *CLI) Run(args ...string) (string, string, int) {
	return r.RunWithInput("", args...)
}

// RunWithInput executes the CLI with stdin and returns stdout, stderr, and exit code.
// stdin must be a string or io.Reader; panics otherwise.
func (r *CLI) RunWithInput(stdin any, args ...string) (string, string, int) {
	var inReader io.Reader

	switch v := stdin.(type) {
	case string:
		inReader = strings.NewReader(v)
	case io.Reader:
		inReader = v
	default:
		panic(fmt.Sprintf("stdin must be string or io.Reader, got %T", stdin))
	}

	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"clsync", "--cwd", r.Dir}, args...)
	code := run(inReader, &outBuf, &errBuf, fullArgs, r.Env, nil, r.deps())

	return outBuf.String(), errBuf.String(), code
}

// MustRun executes the CLI and fails the test if the command returns non-zero.
// Returns trimmed stdout on success.
func (r *CLI) MustRun(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code != 0 {
		r.t.Fatalf("command %v failed with exit code %d\nstderr: %s", args, code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail executes the CLI and fails the test if the command succeeds.
// Returns trimmed stderr.
func (r *CLI) MustFail(args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(args...)
	if code == 0 {
		r.t.Fatalf("command %v should have failed but succeeded\nstdout: %s", args, stdout)
	}

	return strings.TrimSpace(stderr)
}

// PendingPath returns the default pending changelog path of an operator.
func (r *CLI) PendingPath(operator string) string {
	return filepath.Join(r.Dir, "PENDING_"+strings.ToUpper(operator)+"_CHANGELOG.md")
}

// CommittedPath returns the default committed changelog path of an operator.
func (r *CLI) CommittedPath(operator string) string {
	return filepath.Join(r.Dir, "COMMITTED_"+strings.ToUpper(operator)+"_CHANGELOG.md")
}

// ReadFile returns the content of path, or "" if it does not exist.
func (r *CLI) ReadFile(path string) string {
	r.t.Helper()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ""
	}

	if err != nil {
		r.t.Fatalf("failed to read %s: %v", path, err)
	}

	return string(content)
}

// WriteFile writes content to path.
func (r *CLI) WriteFile(path, content string) {
	r.t.Helper()

	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		r.t.Fatalf("failed to write %s: %v", path, err)
	}
}

// AssertContains fails the test if content doesn't contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("content should contain %q\ncontent:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("content should NOT contain %q\ncontent:\n%s", substr, content)
	}
}
