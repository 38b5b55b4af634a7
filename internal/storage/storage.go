package storage

import "context"

// BlobStore is the artifact-store contract: given bytes and a key, persist
// them durably and return a publicly resolvable URL. Stage outputs use
// deterministic keys so re-running a stage overwrites rather than appends.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
