package types //nolint:revive // types is a valid package name

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"
)

func TestVersion_Format(t *testing.T) {
	// Version should be a valid semver
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	if !semverRegex.MatchString(Version) {
		t.Errorf("Version %q is not a valid semver", Version)
	}
}

func TestEnvelopeVersion_MatchesVersion(t *testing.T) {
	if EnvelopeVersion != Version {
		t.Errorf("EnvelopeVersion %q != Version %q (lockstep versioning violated)", EnvelopeVersion, Version)
	}
}

func TestEnvelope_JSONIsFlat(t *testing.T) {
	rec := &Record{ID: "rec-1", EventName: "app_installed", Timestamp: time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)}

	body, err := json.Marshal(NewEnvelope(rec))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(body, &flat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if flat["envelope_version"] != EnvelopeVersion {
		t.Errorf("envelope_version = %v", flat["envelope_version"])
	}
	if flat["id"] != "rec-1" || flat["event_name"] != "app_installed" {
		t.Errorf("record fields not inlined: %v", flat)
	}
	if _, nested := flat["Record"]; nested {
		t.Error("record nested under Record key")
	}
}
