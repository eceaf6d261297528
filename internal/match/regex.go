package match

import (
	"fmt"
	"regexp"
)

// CompilePattern compiles a user-supplied pattern case-insensitively.
// Compilation failure is a user input error; it surfaces before any scan
// work begins.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}
