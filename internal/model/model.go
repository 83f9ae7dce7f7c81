// Package model holds the data types shared across the scan, dedup,
// action and remote packages so none of them need to import each
// other just to pass a FileRecord or a Digest around.
package model

import "time"

// Algorithm identifies a content digest function.
type Algorithm string

const (
	AlgoMD5     Algorithm = "md5"
	AlgoSHA1    Algorithm = "sha1"
	AlgoSHA256  Algorithm = "sha256"
	AlgoBlake3  Algorithm = "blake3"
	AlgoXXHash  Algorithm = "xxhash64"
	AlgoGxHash  Algorithm = "gxhash"
	AlgoFNV1a   Algorithm = "fnv1a"
	AlgoCRC32   Algorithm = "crc32"
	AlgoPHash   Algorithm = "phash"
	AlgoVHash   Algorithm = "vhash"
	AlgoAHash   Algorithm = "ahash"
)

// Cryptographic reports whether the algorithm is collision-resistant
// and therefore safe for cross-trust deduplication.
func (a Algorithm) Cryptographic() bool {
	switch a {
	case AlgoMD5, AlgoSHA1, AlgoSHA256, AlgoBlake3:
		return true
	default:
		return false
	}
}

// RootKind distinguishes a local filesystem root from an SSH-reachable one.
type RootKind int

const (
	RootLocal RootKind = iota
	RootRemote
)

// Root is a location to scan, resolved once per run.
type Root struct {
	ID          int
	Kind        RootKind
	Path        string // local absolute path, or remote path component
	Host        string
	User        string
	Port        string
	SSHOptions  []string
	RsyncOptions []string
	// IsTarget marks the last root in an ordered list as the destination
	// for copy-missing behavior.
	IsTarget bool
}

// String renders the root the way it was written on the command line,
// for logs and reports.
func (r Root) String() string {
	if r.Kind == RootLocal {
		return r.Path
	}
	host := r.Host
	if r.User != "" {
		host = r.User + "@" + host
	}
	if r.Port != "" {
		host = host + ":" + r.Port
	}
	return "ssh:" + host + ":" + r.Path
}

// FileRecord is the metadata tuple for one candidate file, unique
// within a run by (RootID, RelativePath).
type FileRecord struct {
	RootID       int
	RelativePath string
	AbsolutePath string
	SizeBytes    int64
	ModTime      time.Time
	ChangeTime   time.Time
}

// Digest is a fingerprint produced by the hash engine or the media
// fingerprinter.
type Digest struct {
	Algorithm Algorithm
	Bytes     []byte
}

// Hex renders the digest bytes as lowercase hex, the canonical form
// used for map keys, cache rows and report output.
func (d Digest) Hex() string {
	const hexchars = "0123456789abcdef"
	out := make([]byte, len(d.Bytes)*2)
	for i, b := range d.Bytes {
		out[i*2] = hexchars[b>>4]
		out[i*2+1] = hexchars[b&0x0f]
	}
	return string(out)
}

// Equal reports whether two digests were produced by the same
// algorithm and have identical bytes.
func (d Digest) Equal(other Digest) bool {
	if d.Algorithm != other.Algorithm || len(d.Bytes) != len(other.Bytes) {
		return false
	}
	for i := range d.Bytes {
		if d.Bytes[i] != other.Bytes[i] {
			return false
		}
	}
	return true
}

// CacheEntry is a memoized digest for a file at a specific size/mtime.
type CacheEntry struct {
	AbsolutePath string
	SizeBytes    int64
	ModTime      time.Time
	Algorithm    Algorithm
	DigestBytes  []byte
}

// DuplicateSet is an equivalence class of FileRecords sharing a digest
// (or a media cluster), with exactly one member marked as kept.
type DuplicateSet struct {
	Digest    Digest
	Files     []FileRecord
	KeptIndex int
	Rationale string
}

// Kept returns the FileRecord chosen to survive.
func (s DuplicateSet) Kept() FileRecord {
	return s.Files[s.KeptIndex]
}

// Candidates returns every member other than the kept one.
func (s DuplicateSet) Candidates() []FileRecord {
	out := make([]FileRecord, 0, len(s.Files)-1)
	for i, f := range s.Files {
		if i == s.KeptIndex {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ActionKind is the mutation an Action performs.
type ActionKind int

const (
	ActionDelete ActionKind = iota
	ActionMoveTo
	ActionCopyTo
)

func (k ActionKind) String() string {
	switch k {
	case ActionDelete:
		return "delete"
	case ActionMoveTo:
		return "move"
	case ActionCopyTo:
		return "copy"
	default:
		return "unknown"
	}
}

// Action is a pending filesystem mutation produced by the selection
// policy or the copy-missing driver, consumed by the action executor.
type Action struct {
	Kind   ActionKind
	Target FileRecord
	// DestPath is set for ActionMoveTo/ActionCopyTo.
	DestPath string
	// DestRoot is the Root the destination belongs to, nil for a plain
	// local destination under the same root.
	DestRoot *Root
}

// ActionResult records the outcome of executing one Action.
type ActionResult struct {
	Action Action
	Err    error
	Skipped bool // true for a vanished file, not counted as fatal
}

// RunStats carries aggregate counters for a scan/dedup run, attached
// to the report and to the remote Result frame.
type RunStats struct {
	FilesScanned      int64
	BytesScanned      int64
	DuplicateSets     int64
	BytesReclaimable  int64
	PerFileErrors     int64
	Cancelled         bool
	Elapsed           time.Duration
}
