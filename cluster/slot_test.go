package cluster

import "testing"

func TestSlotRange(t *testing.T) {
	for _, k := range []string{"a", "foo", "{tag}suffix", ""} {
		s := Slot([]byte(k))
		if s < 0 || s >= NumSlots {
			t.Errorf("Slot(%q) = %d, out of range", k, s)
		}
	}
}

func TestSlotHashtag(t *testing.T) {
	a := Slot([]byte("prefix{tag}suffixA"))
	b := Slot([]byte("other{tag}suffixB"))
	if a != b {
		t.Errorf("keys sharing {tag} must hash to the same slot: %d vs %d", a, b)
	}
	if Slot([]byte("{tag}suffix")) != Slot([]byte("tag")) {
		t.Errorf("slot({tag}suffix) must equal slot(tag)")
	}
}

func TestSlotEmptyTagFallsBackToWholeKey(t *testing.T) {
	if Slot([]byte("foo{}bar")) != Slot([]byte("foo{}bar")) {
		t.Fatal("sanity")
	}
	// "{}" has no interior, so it must not panic and must hash
	// deterministically (regression guard for the bytes.IndexByte
	// off-by-one between start and the enclosed substring).
	a := Slot([]byte("foo{}bar"))
	b := Slot([]byte("foo{}bar"))
	if a != b {
		t.Errorf("Slot must be deterministic")
	}
	if got := string(hashtag([]byte("foo{}bar"))); got != "foo{}bar" {
		t.Errorf("hashtag(%q) = %q, want the whole key", "foo{}bar", got)
	}
}

func TestSlotNoBraceUsesWholeKey(t *testing.T) {
	if Slot([]byte("abc")) == Slot([]byte("abd")) {
		t.Skip("crc16 collision on these particular inputs; not a correctness failure")
	}
}

// The CRC-16/XMODEM value for "123456789" is the standard check value;
// verifying against it pins the hash function choice, not just its
// range.
func TestSlotKnownCRCCheckValue(t *testing.T) {
	// CRC-16/XMODEM check value for ASCII "123456789" is 0x31C3.
	const want = 0x31C3 % NumSlots
	if got := Slot([]byte("123456789")); got != want {
		t.Errorf("Slot(\"123456789\") = %d, want %d (crc16/xmodem check value)", got, want)
	}
}
