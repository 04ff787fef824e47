package secrets

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_CleanText(t *testing.T) {
	s, err := NewScanner(nil)
	require.NoError(t, err)

	content := "Alice was beginning to get very tired of sitting by her sister on the bank."
	assert.Empty(t, s.Detect(content))

	out, n := s.Redact(content)
	assert.Equal(t, content, out)
	assert.Zero(t, n)
}

func TestNewScanner_InvalidAllowlist(t *testing.T) {
	_, err := NewScanner([]string{"[unclosed"})
	require.ErrorIs(t, err, ErrInvalidRegex)
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestScanner_ConcurrentUse(t *testing.T) {
	s, err := NewScanner([]string{`DEMO_[A-Z_]+`})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Redact("page one\npage two\n")
		}()
	}
	wg.Wait()
}

func TestReplaceFindings(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		findings []Finding
		want     string
	}{
		{
			name:     "single",
			content:  "token=abc123 end",
			findings: []Finding{{RuleID: "generic-api-key", Match: "abc123"}},
			want:     "token=[REDACTED:generic-api-key] end",
		},
		{
			name:    "repeated secret",
			content: "a=k1 b=k1",
			findings: []Finding{
				{RuleID: "r", Match: "k1"},
			},
			want: "a=[REDACTED:r] b=[REDACTED:r]",
		},
		{
			name:    "longer match first",
			content: "key=sk-live-XYZ",
			findings: []Finding{
				{RuleID: "short", Match: "XYZ"},
				{RuleID: "long", Match: "sk-live-XYZ"},
			},
			want: "key=[REDACTED:long]",
		},
		{
			name:     "empty match ignored",
			content:  "nothing here",
			findings: []Finding{{RuleID: "r", Match: ""}},
			want:     "nothing here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, replaceFindings(tt.content, tt.findings))
		})
	}
}
