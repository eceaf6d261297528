package session

import "fmt"

const maxNameLen = 64

// ValidateName rejects session names that could not be used safely as a
// directory name. Lowercase letters, digits, '-' and '_' only, at most 64
// characters.
func ValidateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("invalid session name %q: must be 1-%d characters", name, maxNameLen)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("invalid session name %q: only lowercase letters, digits, '-' and '_' are allowed", name)
		}
	}
	return nil
}
