// Package audit hash-chains history entries so edits to a stored run are detectable.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// GenesisHash is the previous hash of the first entry ever written.
var GenesisHash = strings.Repeat("0", 64)

// Entry is one link of the chain.
type Entry struct {
	RunID        string
	Kind         string
	Payload      string
	Timestamp    string
	PreviousHash string
	Hash         string
}

// Chain appends entries, each hashing the one before it.
type Chain struct {
	previousHash string
	now          func() time.Time
}

// NewChain starts a chain after previousHash, the hash of the last stored
// entry. An empty previousHash starts from GenesisHash.
func NewChain(previousHash string) *Chain {
	if previousHash == "" {
		previousHash = GenesisHash
	}
	return &Chain{previousHash: previousHash, now: time.Now}
}

// Append links a new entry to the chain. A Chain is not safe for concurrent
// use; callers serialise appends, the history repository inside a transaction.
func (c *Chain) Append(runID, kind, payload string) Entry {
	e := Entry{
		RunID:        runID,
		Kind:         kind,
		Payload:      payload,
		Timestamp:    c.now().UTC().Format(time.RFC3339Nano),
		PreviousHash: c.previousHash,
	}
	e.Hash = hashOf(e)
	c.previousHash = e.Hash
	return e
}

func hashOf(e Entry) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{e.PreviousHash, e.Timestamp, e.RunID, e.Kind, e.Payload}, "|")))
	return hex.EncodeToString(sum[:])
}

// BrokenLinkError locates the first entry that fails verification.
type BrokenLinkError struct {
	Index  int
	Reason string
}

func (e *BrokenLinkError) Error() string {
	return fmt.Sprintf("audit chain broken at entry %d: %s", e.Index, e.Reason)
}

// Verify checks that entries, in write order, form an unbroken chain. The
// first entry's previous hash is trusted as given.
func Verify(entries []Entry) error {
	for i, e := range entries {
		if i > 0 && e.PreviousHash != entries[i-1].Hash {
			return &BrokenLinkError{Index: i, Reason: "previous hash does not match"}
		}
		if hashOf(e) != e.Hash {
			return &BrokenLinkError{Index: i, Reason: "hash does not match contents"}
		}
	}
	return nil
}
