package types

const redactedPlaceholder = "***REDACTED***"

// SecretString holds a credential (database URL, weather API key) that must
// never reach logs or JSON config dumps. Use Unmask to read the raw value.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString covers %#v formatting.
func (s SecretString) GoString() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
