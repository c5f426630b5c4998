package types

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testSecret = "postgres://lawn:hunter2@db:5432/lawnwatch"

func TestSecretString_Formatting(t *testing.T) {
	s := SecretString(testSecret)

	for _, verb := range []string{"%s", "%v", "%+v", "%#v"} {
		got := fmt.Sprintf(verb, s)
		if strings.Contains(got, "hunter2") {
			t.Errorf("Sprintf(%q) leaked the secret: %s", verb, got)
		}
	}
}

func TestSecretString_MarshalJSON_InStruct(t *testing.T) {
	cfg := struct {
		URL    SecretString `json:"url"`
		Region string       `json:"region"`
	}{URL: testSecret, Region: "us-east-1"}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	want := `{"url":"***REDACTED***","region":"us-east-1"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestSecretString_SlogAttr(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))
	logger.Info("connecting", "database_url", SecretString(testSecret))

	if strings.Contains(sb.String(), "hunter2") {
		t.Errorf("log output leaked the secret: %s", sb.String())
	}
}

func TestSecretString_Unmask(t *testing.T) {
	if got := SecretString(testSecret).Unmask(); got != testSecret {
		t.Errorf("Unmask() = %q, want %q", got, testSecret)
	}
}
