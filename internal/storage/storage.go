// Package storage is the persistence boundary: a synchronous key-value store
// holding the serialized note collection as a single blob under a fixed key.
package storage

// KV is a synchronous key-value blob store. Get and Set are atomic from the
// caller's perspective; no partially written value is ever observable.
type KV interface {
	// Get returns the value for key. The second return is false when the key
	// has never been written.
	Get(key string) ([]byte, bool, error)

	// Set overwrites the value for key.
	Set(key string, value []byte) error
}
