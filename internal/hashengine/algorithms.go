package hashengine

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"hash/crc32"
	"hash/crc64"
	"hash/fnv"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	"dupsync/internal/model"
)

// newHash returns a fresh hash.Hash for algo. Cryptographic algorithms
// (md5, sha1, sha256, blake3) come from the standard library or
// github.com/zeebo/blake3; the non-cryptographic speed options
// (xxhash64, fnv1a, crc32) trade collision resistance for throughput
// and must never be used for cross-trust deduplication, per spec.
//
// gxhash has no published Go implementation (it is an AES-NI
// accelerated hash with only a Rust crate); it is approximated here
// with crc64's ISO polynomial, which is the closest deterministic,
// dependency-free non-cryptographic hash the standard library offers.
func newHash(algo model.Algorithm) (hash.Hash, error) {
	switch algo {
	case model.AlgoMD5:
		return md5.New(), nil
	case model.AlgoSHA1:
		return sha1.New(), nil
	case model.AlgoSHA256:
		return sha256.New(), nil
	case model.AlgoBlake3:
		return blake3.New(), nil
	case model.AlgoXXHash:
		return xxhash.New(), nil
	case model.AlgoFNV1a:
		return fnv.New64a(), nil
	case model.AlgoCRC32:
		return crc32.NewIEEE(), nil
	case model.AlgoGxHash:
		return crc64.New(crc64.MakeTable(crc64.ISO)), nil
	default:
		return nil, fmt.Errorf("hashengine: unsupported algorithm %q", algo)
	}
}

// ValidAlgorithm reports whether algo is one of the content digest
// algorithms the hash engine can compute (the extended media set
// phash/vhash/ahash belongs to the media fingerprinter, not here).
func ValidAlgorithm(algo model.Algorithm) bool {
	switch algo {
	case model.AlgoMD5, model.AlgoSHA1, model.AlgoSHA256, model.AlgoBlake3,
		model.AlgoXXHash, model.AlgoGxHash, model.AlgoFNV1a, model.AlgoCRC32:
		return true
	default:
		return false
	}
}
