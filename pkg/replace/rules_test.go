package replace

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/slidesmith/slidesmith/pkg/errors"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestParseRules(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "basic pairs",
			input: "old=new\nfoo=bar\n",
			want:  map[string]string{"old": "new", "foo": "bar"},
		},
		{
			name:  "comments and blank lines",
			input: "# header comment\n\nold=new\n   # indented comment\n",
			want:  map[string]string{"old": "new"},
		},
		{
			name:  "crlf and bom",
			input: "\uFEFFold=new\r\nfoo=bar\r",
			want:  map[string]string{"old": "new", "foo": "bar"},
		},
		{
			name:  "whitespace around key and value",
			input: "  old  =  new value  \n",
			want:  map[string]string{"old": "new value"},
		},
		{
			name:  "value may contain equals",
			input: "url=http://a=b\n",
			want:  map[string]string{"url": "http://a=b"},
		},
		{
			name:  "malformed lines skipped",
			input: "no separator here\nold=new\n=empty key\n",
			want:  map[string]string{"old": "new"},
		},
		{
			name:  "duplicate key last wins",
			input: "old=first\nold=second\n",
			want:  map[string]string{"old": "second"},
		},
		{
			name:  "empty value allowed",
			input: "remove-me=\n",
			want:  map[string]string{"remove-me": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRules(strings.NewReader(tt.input), quietLogger())
			if err != nil {
				t.Fatalf("ParseRules: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("rules = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("rules[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParseRulesRejectsInversePairs(t *testing.T) {
	_, err := ParseRules(strings.NewReader("a=b\nb=a\nx=y\n"), quietLogger())
	if !errors.Is(err, errors.ErrCodeConflictingConfig) {
		t.Fatalf("error = %v, want CONFLICTING_CONFIG", err)
	}
	if !strings.Contains(err.Error(), "a <-> b") {
		t.Errorf("error should name the pair: %v", err)
	}
}

func TestParseRulesIdentityMappingIsNotInverse(t *testing.T) {
	got, err := ParseRules(strings.NewReader("same=same\n"), quietLogger())
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if got["same"] != "same" {
		t.Errorf("rules = %v", got)
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules("/nonexistent/replace.properties", quietLogger())
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}
