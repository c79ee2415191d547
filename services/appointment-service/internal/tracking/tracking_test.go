package tracking

import (
	"encoding/hex"
	"testing"
)

func TestNewIsFixedLengthHex(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		id, err := New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if len(id) != 32 {
			t.Fatalf("expected 32 chars, got %d", len(id))
		}
		if _, err := hex.DecodeString(id); err != nil {
			t.Fatalf("not hex: %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate token %q", id)
		}
		seen[id] = struct{}{}
	}
}
