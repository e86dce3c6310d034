package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Target", KeyTarget, "html", Target("html")},
		{"Channel", KeyChannel, "stable", Channel("stable")},
		{"Branch", KeyBranch, "master", Branch("master")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Dir", KeyDir, "build", Dir("build")},
		{"Commit", KeyCommit, "abc1234", Commit("abc1234")},
		{"BuildID", KeyBuildID, "b-1", BuildID("b-1")},
		{"ScheduleID", KeyScheduleID, "sch1", ScheduleID("sch1")},
		{"URL", KeyURL, "http://example", URL("http://example")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric helpers.
func TestNumericHelpers(t *testing.T) {
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
	if v := Warnings(3); v.Key != KeyWarnings {
		t.Fatalf("Warnings key mismatch: %s", v.Key)
	}
	if v := Port(8080); v.Key != KeyPort {
		t.Fatalf("Port key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errors.New("boom"))
	if attr.Value.String() != "boom" {
		t.Fatalf("expected 'boom', got %s", attr.Value.String())
	}
}
