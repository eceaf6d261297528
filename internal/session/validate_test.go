package session

import "testing"

func TestValidateName(t *testing.T) {
	valid := []string{"main", "work", "a", "my-session", "my_session_2"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "Main", "has space", "has/slash", "é", string(make([]byte, 65))}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}
