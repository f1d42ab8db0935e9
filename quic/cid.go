package quic

import (
	"crypto/rand"

	"github.com/rs/xid"
)

// ServerCIDLen and ClientCIDLen match spec.md §3: "Server CIDs in this
// system are 18 bytes, client CIDs 17 bytes."
const (
	ServerCIDLen = 18
	ClientCIDLen = 17
)

// NewConnectionID generates a CID of the given length. xid's 12-byte
// globally-unique, sortable id seeds the low bytes (useful for log
// correlation across the two tunnel endpoints); the remainder is filled
// from crypto/rand so the CID is not predictable on the wire.
func NewConnectionID(length int) []byte {
	id := make([]byte, length)
	seed := xid.New().Bytes()
	n := copy(id, seed)
	if n < length {
		rand.Read(id[n:])
	}
	return id
}

// NewStatelessResetToken generates the 16-byte token carried in
// NEW_CONNECTION_ID (spec.md §3) and checked on stateless reset
// (spec.md §4.3, §8 scenario 6).
func NewStatelessResetToken() [16]byte {
	var tok [16]byte
	rand.Read(tok[:])
	return tok
}
