package printparse

import (
	"fmt"
	"strconv"
	"strings"
)

// IntTemplate codes an integer inside a fixed prefix/suffix template, e.g.
// "Query #3" or "Lab 1".
type IntTemplate struct {
	Prefix string
	Suffix string
	// Offset is added when printing and subtracted when parsing, so internal
	// zero-based indices can surface as one-based labels.
	Offset int
	// Width, when positive, zero-pads the printed integer and requires
	// exactly that many digits when parsing.
	Width int
}

func (t IntTemplate) Print(value int) string {
	n := value + t.Offset
	if t.Width > 0 {
		return t.Prefix + fmt.Sprintf("%0*d", t.Width, n) + t.Suffix
	}
	return t.Prefix + strconv.Itoa(n) + t.Suffix
}

func (t IntTemplate) Parse(repr string) (int, error) {
	body, ok := strings.CutPrefix(repr, t.Prefix)
	if !ok {
		return 0, fmt.Errorf("%q does not start with %q", repr, t.Prefix)
	}
	body, ok = strings.CutSuffix(body, t.Suffix)
	if !ok {
		return 0, fmt.Errorf("%q does not end with %q", repr, t.Suffix)
	}
	if t.Width > 0 && len(body) != t.Width {
		return 0, fmt.Errorf("%q: expected %d digits, got %d", repr, t.Width, len(body))
	}
	if body == "" || strings.TrimLeft(body, "0123456789") != "" {
		return 0, fmt.Errorf("%q: %q is not a decimal integer", repr, body)
	}
	n, err := strconv.Atoi(body)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", repr, err)
	}
	return n - t.Offset, nil
}
