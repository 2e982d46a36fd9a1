package auth

const redacted = "[REDACTED]"

// Secret holds the token signing key. It never prints its value.
type Secret string

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

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsZero reports whether no secret was configured.
func (s Secret) IsZero() bool {
	return s == ""
}

func (s Secret) key() []byte {
	return []byte(s)
}
