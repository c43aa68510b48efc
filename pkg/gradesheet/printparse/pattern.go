package printparse

import (
	"fmt"
	"regexp"
)

// Pattern codes a string through a regular expression with exactly one
// capture group. Printing formats the value with Format (default "%s");
// parsing extracts the capture group from a full match.
type Pattern struct {
	Regexp *regexp.Regexp
	Format string
}

// NewPattern compiles expr, which must contain exactly one capture group.
func NewPattern(expr, format string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return Pattern{}, fmt.Errorf("pattern %q: expected exactly one capture group, got %d", expr, re.NumSubexp())
	}
	return Pattern{Regexp: re, Format: format}, nil
}

func (p Pattern) Print(value string) string {
	if p.Format == "" {
		return value
	}
	return fmt.Sprintf(p.Format, value)
}

func (p Pattern) Parse(repr string) (string, error) {
	m := p.Regexp.FindStringSubmatch(repr)
	if m == nil || m[0] != repr {
		return "", fmt.Errorf("%q does not match %q", repr, p.Regexp.String())
	}
	return m[1], nil
}
