// Package media implements C7: perceptual fingerprints for images,
// video and audio, and the similarity-threshold clustering that
// extends duplicate grouping to near-duplicates.
package media

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"dupsync/internal/model"
)

// Kind classifies a FileRecord's content type for routing into the
// right fingerprinter.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
	KindAudio
)

// Info carries the attributes the media-aware selection policy needs
// beyond the fingerprint itself.
type Info struct {
	Width, Height int
	Format        string
}

// Fingerprint bundles a perceptual Digest with the Info needed for
// kept-member selection within a cluster.
type Fingerprint struct {
	Digest model.Digest
	Info   Info
}

// DetectKind sniffs path's content type via magic numbers (not
// extension) and classifies it, grounded on the same
// gabriel-vasile/mimetype detection the teacher's TUI uses to label
// files.
func DetectKind(path string) (Kind, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return KindUnknown, err
	}
	root := mt.String()
	switch {
	case strings.HasPrefix(root, "image/"):
		return KindImage, nil
	case strings.HasPrefix(root, "video/"):
		return KindVideo, nil
	case strings.HasPrefix(root, "audio/"):
		return KindAudio, nil
	default:
		for p := mt; p != nil; p = p.Parent() {
			switch {
			case strings.HasPrefix(p.String(), "image/"):
				return KindImage, nil
			case strings.HasPrefix(p.String(), "video/"):
				return KindVideo, nil
			case strings.HasPrefix(p.String(), "audio/"):
				return KindAudio, nil
			}
		}
		return KindUnknown, nil
	}
}

// Fingerprinter is the capability the driver composes per Kind. A
// file whose Kind cannot be decoded returns an error and is excluded
// from media grouping, falling back to the byte-identical pipeline
// per spec.md §4.7.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, path string) (Fingerprint, error)
}

// uint64ToBytes renders a 64-bit perceptual hash as 8 big-endian
// bytes so it fits model.Digest's []byte shape like any other digest.
func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// hammingDistance64 counts differing bits between two 64-bit hashes.
func hammingDistance64(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}

// Similarity computes spec.md §4.7's 0-100 similarity score between
// two digests of the same algorithm. phash is a fixed 64-bit hash;
// vhash is a concatenation of per-frame 64-bit hashes and its
// similarity is the mean of the per-frame similarities; ahash is either
// a 64-bit image average hash or a longer audio fingerprint (see below).
func Similarity(a, b model.Digest) (float64, error) {
	if a.Algorithm != b.Algorithm {
		return 0, errMismatchedAlgorithm
	}
	switch a.Algorithm {
	case model.AlgoPHash:
		return similarity64(a.Bytes, b.Bytes), nil
	case model.AlgoVHash:
		return similarityFrames(a.Bytes, b.Bytes), nil
	case model.AlgoAHash:
		// AlgoAHash is shared by the image average-hash (a fixed 8-byte
		// hash, compared like pHash) and the audio acoustic fingerprint
		// (a longer sequence of 32-bit subfingerprints, compared like
		// vhash's per-frame scheme but at half the chunk width).
		if len(a.Bytes) == 8 && len(b.Bytes) == 8 {
			return similarity64(a.Bytes, b.Bytes), nil
		}
		return similarity32Frames(a.Bytes, b.Bytes), nil
	default:
		return 0, errUnsupportedAlgorithm
	}
}

func similarity64(a, b []byte) float64 {
	ha, hb := bytesToUint64(a), bytesToUint64(b)
	dist := hammingDistance64(ha, hb)
	return 100 * (1 - float64(dist)/64)
}

func similarityFrames(a, b []byte) float64 {
	n := len(a) / 8
	m := len(b) / 8
	frames := n
	if m < frames {
		frames = m
	}
	if frames == 0 {
		return 0
	}
	var total float64
	for i := 0; i < frames; i++ {
		total += similarity64(a[i*8:i*8+8], b[i*8:i*8+8])
	}
	return total / float64(frames)
}

// similarity32Frames is similarityFrames' 32-bit-chunk counterpart,
// used for chromaprint-style subfingerprint sequences.
func similarity32Frames(a, b []byte) float64 {
	n := len(a) / 4
	m := len(b) / 4
	frames := n
	if m < frames {
		frames = m
	}
	if frames == 0 {
		return 0
	}
	var total float64
	for i := 0; i < frames; i++ {
		va := uint32FromBytes(a[i*4 : i*4+4])
		vb := uint32FromBytes(b[i*4 : i*4+4])
		dist := hammingDistance32(va, vb)
		total += 100 * (1 - float64(dist)/32)
	}
	return total / float64(frames)
}

func uint32FromBytes(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func hammingDistance32(a, b uint32) int {
	x := a ^ b
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}
