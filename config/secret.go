package config

const redacted = "[REDACTED]"

// Secret holds a credential. It prints as [REDACTED] in logs, %v and JSON.
type Secret string

func (s Secret) Reveal() string {
	return string(s)
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string {
	return s.String()
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
