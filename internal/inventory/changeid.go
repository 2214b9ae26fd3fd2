package inventory

import (
	"crypto/sha1" //nolint:gosec // SHA1 is used for non-cryptographic change ID generation only
	"fmt"
	"time"
)

// DefaultMaxHistory is the number of change entries kept per product.
const DefaultMaxHistory = 10

// ComputeChangeID computes a deterministic change ID from the product
// name, version, action and structure digest.
//
// Format: "change-sha1-<8hex>" (first 8 hex chars of SHA1).
func ComputeChangeID(productName, version string, action Action, digest string) string {
	h := sha1.New() //nolint:gosec // not used for security, only for change fingerprinting
	h.Write([]byte(productName))
	h.Write([]byte(version))
	h.Write([]byte(action))
	h.Write([]byte(digest))
	sum := h.Sum(nil)
	return fmt.Sprintf("change-sha1-%08x", sum[:4])
}

// UpdateIndex adds changeID to the front of the index.
// If the changeID already exists, it is removed from its current position
// and prepended. The original slice is not modified.
func UpdateIndex(index []string, changeID string) []string {
	filtered := make([]string, 0, len(index))
	for _, id := range index {
		if id != changeID {
			filtered = append(filtered, id)
		}
	}
	return append([]string{changeID}, filtered...)
}

// PruneHistory removes the oldest change entries when the index exceeds
// maxHistory. Both the index and the Changes map are updated in place.
func PruneHistory(r *Record, maxHistory int) {
	if maxHistory <= 0 || len(r.Index) <= maxHistory {
		return
	}
	for _, id := range r.Index[maxHistory:] {
		delete(r.Changes, id)
	}
	r.Index = r.Index[:maxHistory]
}

// PrepareChange computes a change ID and builds a ChangeEntry for the
// installed components. The timestamp is the current UTC time.
func PrepareChange(productName, version string, action Action, components []Component) (string, *ChangeEntry) {
	digest := ComputeStructureDigest(components)
	id := ComputeChangeID(productName, version, action, digest)
	return id, &ChangeEntry{
		Action:    action,
		Version:   version,
		Digest:    digest,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// AddChange adds change under id to r, moves it to the front of the index
// and prunes history beyond maxHistory.
func (r *Record) AddChange(id string, change *ChangeEntry, maxHistory int) {
	if r.Changes == nil {
		r.Changes = make(map[string]*ChangeEntry)
	}
	r.Changes[id] = change
	r.Index = UpdateIndex(r.Index, id)
	r.LastTransitionTime = change.Timestamp
	PruneHistory(r, maxHistory)
}
