package preset

import (
	"testing"

	"github.com/nullpane/reflexd/internal/domain"
)

// TestKeyCatalog_Complete verifies every supported key has all three
// backend encodings and that the known fixed codes are right.
func TestKeyCatalog_Complete(t *testing.T) {
	for k, e := range keyCatalog {
		if e.linux == 0 && k != "reserved" {
			t.Errorf("key %q has zero linux code", k)
		}
		if e.scan == 0 {
			t.Errorf("key %q has zero scan code", k)
		}
		if e.robot == "" {
			t.Errorf("key %q has empty robotgo token", k)
		}
	}

	cases := []struct {
		key   domain.Key
		linux uint16
		scan  uint16
	}{
		{"space", 57, 0x39},
		{"enter", 28, 0x1C},
		{"esc", 1, 0x01},
		{"a", 30, 0x1E},
		{"shift", 42, 0x2A},
		{"ctrl", 29, 0x1D},
		{"alt", 56, 0x38},
		{"1", 2, 0x02},
		{"5", 6, 0x06},
	}
	for _, c := range cases {
		lc, ok := LinuxCode(c.key)
		if !ok || lc != c.linux {
			t.Errorf("LinuxCode(%q) = %d, %v; want %d, true", c.key, lc, ok, c.linux)
		}
		sc, ok := ScanCode(c.key)
		if !ok || sc != c.scan {
			t.Errorf("ScanCode(%q) = 0x%02X, %v; want 0x%02X, true", c.key, sc, ok, c.scan)
		}
	}
}

func TestKeys_SortedAndUnique(t *testing.T) {
	keys := Keys()
	if len(keys) != len(keyCatalog) {
		t.Fatalf("Keys() returned %d entries, want %d", len(keys), len(keyCatalog))
	}
	seen := map[domain.Key]bool{}
	for i, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
		if i > 0 && keys[i-1] >= k {
			t.Errorf("keys not sorted at index %d: %q >= %q", i, keys[i-1], k)
		}
	}
}

func TestLinuxCodes_CoversCatalog(t *testing.T) {
	codes := LinuxCodes()
	if len(codes) != len(keyCatalog) {
		t.Fatalf("LinuxCodes() returned %d entries, want %d", len(codes), len(keyCatalog))
	}
	want := map[uint16]bool{}
	for _, e := range keyCatalog {
		want[e.linux] = true
	}
	for _, c := range codes {
		if !want[c] {
			t.Errorf("unexpected code %d", c)
		}
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("space")
	if err != nil {
		t.Fatalf("ParseKey(space) error: %v", err)
	}
	if k != domain.DefaultKey {
		t.Errorf("ParseKey(space) = %q, want %q", k, domain.DefaultKey)
	}

	if _, err := ParseKey("f13"); err == nil {
		t.Error("ParseKey(f13) should fail")
	}
	if ValidKey("capslock") {
		t.Error("capslock should not be in the capability set")
	}
}
