package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NodeID is a content-addressed node identifier: the SHA-256 of the node's
// construction path.
type NodeID [32]byte

// ZeroID is the unset NodeID.
var ZeroID NodeID

// NewNodeID derives a NodeID from a construction path such as
// "defsolid/bracket".
func NewNodeID(path string) NodeID {
	return NodeID(sha256.Sum256([]byte(path)))
}

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

// Short returns the first 6 bytes of the ID in hex, for messages.
func (id NodeID) Short() string {
	return hex.EncodeToString(id[:6])
}

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText encodes the ID as hex so it can key JSON objects.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses a hex-encoded ID.
func (id *NodeID) UnmarshalText(b []byte) error {
	if hex.DecodedLen(len(b)) != len(id) {
		return fmt.Errorf("graph: node id has %d hex digits, want %d", len(b), 2*len(id))
	}
	_, err := hex.Decode(id[:], b)
	return err
}
