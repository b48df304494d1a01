package config

import (
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("RELAY_TEST_SET", "hello")
	t.Setenv("RELAY_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set var", "value: ${RELAY_TEST_SET}", "value: hello"},
		{"unset var", "value: ${RELAY_UNSET_12345}", "value: "},
		{"default when unset", "value: ${RELAY_UNSET_12345:-fallback}", "value: fallback"},
		{"default ignored when set", "value: ${RELAY_TEST_SET:-fallback}", "value: hello"},
		{"default when empty", "value: ${RELAY_TEST_EMPTY:-fallback}", "value: fallback"},
		{"no vars", "no variables here", "no variables here"},
		{"bare dollar untouched", "cost: $5", "cost: $5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv_NestedInYAML(t *testing.T) {
	t.Setenv("KLAVIYO_API_KEY", "pk_live")
	t.Setenv("POSTHOG_PROJECT_API_KEY", "phc_key")

	input := `klaviyo:
  private_api_key: ${KLAVIYO_API_KEY}
posthog:
  project_api_key: ${POSTHOG_PROJECT_API_KEY}
  host: ${POSTHOG_API_HOST:-https://eu.i.posthog.com}`

	got := ExpandEnv(input)
	want := `klaviyo:
  private_api_key: pk_live
posthog:
  project_api_key: phc_key
  host: https://eu.i.posthog.com`

	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
