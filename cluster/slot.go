package cluster

import (
	"bytes"

	"github.com/howeyc/crc16"
)

// NumSlots is the fixed Redis Cluster keyspace size.
const NumSlots = 16384

// Slot hashes key into [0, NumSlots) following the Redis Cluster
// hashtag rule: if key contains "{...}" with a non-empty interior,
// only that interior is hashed, so "{user1}.following" and
// "{user1}.followers" always land on the same slot.
//
// Grounded on leoantony72-irisDb/utils/crc16.go's use of
// github.com/howeyc/crc16 for exactly this purpose, but against
// crc16.CCITTFalseTable (with a zero initial value) rather than that
// file's crc16.IBMTable: IBM's
// table reflects input and output bits and uses polynomial 0x8005,
// while Redis Cluster's slot hash is the CCITT/XModem variant
// (polynomial 0x1021, initial value 0, no reflection) that spec.md
// §4.2 requires. See DESIGN.md.
func Slot(key []byte) int {
	tag := hashtag(key)
	sum := crc16.Checksum(tag, crc16.CCITTFalseTable)
	return int(sum) % NumSlots
}

// hashtag returns the substring to hash: the content between the
// first '{' and the next '}' after it, if that content is non-empty;
// otherwise the whole key.
func hashtag(key []byte) []byte {
	start := bytes.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := bytes.IndexByte(key[start+1:], '}')
	if end < 0 {
		return key
	}
	if end == 0 {
		// "{}" — empty tag, falls back to hashing the whole key.
		return key
	}
	return key[start+1 : start+1+end]
}
