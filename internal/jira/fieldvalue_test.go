package jira_test

import (
	"encoding/json"
	"testing"

	"github.com/calvinalkan/clsync/internal/jira"
)

func decode(t *testing.T, raw string) any {
	t.Helper()

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}

	return v
}

func TestFieldValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantKind jira.Kind
		wantText string
	}{
		{"string", `"Reporting"`, jira.KindScalar, "Reporting"},
		{"number", `3`, jira.KindScalar, "3"},
		{"float", `2.5`, jira.KindScalar, "2.5"},
		{"bool", `true`, jira.KindScalar, "true"},
		{"user", `{"name":"amy","displayName":"Amy Pond"}`, jira.KindUser, "Amy Pond"},
		{"user without display name", `{"name":"amy","displayName":""}`, jira.KindUser, "amy"},
		{"option", `{"value":"High","id":"1"}`, jira.KindOption, "High"},
		{"option array", `[{"value":"A"},{"value":"B"}]`, jira.KindOptionArray, "A, B"},
		{"empty array", `[]`, jira.KindOptionArray, ""},
		{"named object", `{"name":"Done","id":"3"}`, jira.KindUnknown, "Done"},
		{"mixed array", `[1,"x"]`, jira.KindUnknown, `[1,"x"]`},
		{"null", `null`, jira.KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fv := jira.NewFieldValue(decode(t, tt.raw))

			if got, want := fv.Kind, tt.wantKind; got != want {
				t.Errorf("Kind=%s, want=%s", got, want)
			}

			if got, want := fv.Text(), tt.wantText; got != want {
				t.Errorf("Text()=%q, want=%q", got, want)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	if got, want := jira.Quote(`Say "hi" \ bye`), `"Say \"hi\" \\ bye"`; got != want {
		t.Errorf("Quote()=%s, want=%s", got, want)
	}
}
