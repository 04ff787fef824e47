// Package secrets detects credentials in document text using the Gitleaks
// rule set and replaces them with redaction markers before the text is
// embedded or placed in a prompt.
package secrets

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// ErrInvalidRegex indicates an allowlist pattern failed to compile.
var ErrInvalidRegex = errors.New("invalid regex pattern")

// Finding is a detected secret.
type Finding struct {
	RuleID string
	Line   int
	Match  string
}

// Scanner wraps a Gitleaks detector. It is safe for concurrent use.
type Scanner struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewScanner creates a Scanner with the default Gitleaks rules. Content
// matching any of allow is never reported.
func NewScanner(allow []string) (*Scanner, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating detector: %w", err)
	}

	if len(allow) > 0 {
		al := &gitleaksConfig.Allowlist{Description: "ragify allowlist"}
		for _, pattern := range allow {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrInvalidRegex, pattern, err)
			}
			al.Regexes = append(al.Regexes, (*gitleaksRegexp.Regexp)(re))
		}
		detector.Config.Allowlists = append(detector.Config.Allowlists, al)
	}

	return &Scanner{detector: detector}, nil
}

// Detect returns the secrets found in content.
func (s *Scanner) Detect(content string) []Finding {
	s.mu.Lock()
	raw := s.detector.DetectString(content)
	s.mu.Unlock()

	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		findings = append(findings, Finding{
			RuleID: f.RuleID,
			Line:   f.StartLine,
			Match:  f.Secret,
		})
	}
	return findings
}

// Redact replaces every detected secret in content with a
// [REDACTED:rule-id] marker and reports how many were replaced.
func (s *Scanner) Redact(content string) (string, int) {
	findings := s.Detect(content)
	if len(findings) == 0 {
		return content, 0
	}
	return replaceFindings(content, findings), len(findings)
}

// replaceFindings substitutes longer matches first so a secret that
// contains another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Match) > len(sorted[j].Match)
	})

	for _, f := range sorted {
		if f.Match == "" {
			continue
		}
		content = strings.ReplaceAll(content, f.Match, "[REDACTED:"+f.RuleID+"]")
	}
	return content
}
