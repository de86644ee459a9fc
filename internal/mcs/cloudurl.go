package mcs

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultCloudURLPatterns recognise URLs already served by a cloud provider.
var DefaultCloudURLPatterns = []string{
	`^https?://.*\.s3\.amazonaws\.com/`,
	`^https://storage\.googleapis\.com/`,
	`^https://storage\.cloud\.google\.com/`,
}

// CloudURLMatcher decides whether a record URL already points at cloud storage.
type CloudURLMatcher struct {
	patterns []*regexp.Regexp
	prefixes []string
}

// NewCloudURLMatcher compiles patterns and adds literal prefixes, typically the
// private-file proxy path and the backend's public base URL. Empty prefixes are ignored.
func NewCloudURLMatcher(patterns []string, prefixes ...string) (*CloudURLMatcher, error) {
	m := &CloudURLMatcher{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling cloud url pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			m.prefixes = append(m.prefixes, p)
		}
	}
	return m, nil
}

// Match reports whether url is a cloud URL.
func (m *CloudURLMatcher) Match(url string) bool {
	for _, p := range m.prefixes {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	for _, re := range m.patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
