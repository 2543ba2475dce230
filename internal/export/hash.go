package export

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/crypto/argon2"
)

// HashType represents the different hashing algorithms available.
type HashType string

const (
	// HashTypeArgon2id uses the Argon2id algorithm for hashing.
	HashTypeArgon2id HashType = "argon2id"
	// HashTypeSHA256 uses the SHA256 algorithm for hashing.
	HashTypeSHA256 HashType = "sha256"
)

// Valid reports whether the hash type is supported.
func (h HashType) Valid() bool {
	return h == HashTypeArgon2id || h == HashTypeSHA256
}

// hashResult pairs a user ID with its hash.
type hashResult struct {
	id   int64
	hash string
}

// HashID converts a single ID to a hash using the specified algorithm with the provided salt.
func HashID(id int64, salt string, hashType HashType, iterations uint32, memory uint32) string {
	// Convert ID to bytes in little-endian format
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, uint64(id)) //nolint:gosec // IDs are positive

	var hash []byte

	switch hashType {
	case HashTypeArgon2id:
		hash = argon2.IDKey(idBytes, []byte(salt), iterations, memory*1024, 1, 32)
	case HashTypeSHA256:
		// Iterative SHA256 hashing with salt
		hash = []byte(salt)

		h := sha256.New()
		for range iterations {
			h.Reset()
			h.Write(idBytes)
			h.Write(hash)
			hash = h.Sum(nil)
		}
	}

	return hex.EncodeToString(hash)
}

// hashIDs hashes each distinct ID once using up to concurrency workers.
func hashIDs(ids []int64, config *Config) map[int64]string {
	hashes := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return hashes
	}

	concurrency := max(config.Concurrency, 1)
	concurrency = min(concurrency, len(ids))

	p := pool.NewWithResults[hashResult]().WithMaxGoroutines(concurrency)
	for _, id := range ids {
		p.Go(func() hashResult {
			return hashResult{
				id:   id,
				hash: HashID(id, config.Salt, config.HashType, config.Iterations, config.Memory),
			}
		})
	}

	for _, r := range p.Wait() {
		hashes[r.id] = r.hash
	}

	return hashes
}
