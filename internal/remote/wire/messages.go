package wire

import "time"

// Hello is exchanged first on both sides to negotiate encoding and
// compression before any Command frame is sent. SessionID identifies
// this tunnel's single command/result exchange in logs on both ends;
// the client mints it, the server echoes it back unchanged in its own
// Hello reply.
type Hello struct {
	ProtocolVersion int    `json:"protocol_version"`
	Binary          bool   `json:"binary"`
	Compression     bool   `json:"compression"`
	SessionID       string `json:"session_id"`
}

// ProtocolVersion is bumped whenever Command/Result's shape changes
// in a way older clients/servers can't decode.
const ProtocolVersion = 1

// Command is the single TypeCommand payload a client sends a remote
// server to start a dedup run.
type Command struct {
	RootPath        string   `json:"root_path"`
	Algorithm       string   `json:"algorithm"`
	Parallelism     int      `json:"parallelism"`
	FastMode        bool     `json:"fast_mode"`
	SelectionPolicy string   `json:"selection_policy"`
	IncludeGlobs    []string `json:"include_globs,omitempty"`
	ExcludeGlobs    []string `json:"exclude_globs,omitempty"`
	DryRun          bool     `json:"dry_run"`

	Media                     bool     `json:"media"`
	MediaThreshold            float64  `json:"media_threshold"`
	MediaRequireAllPairs      bool     `json:"media_require_all_pairs"`
	MediaResolutionPreference string   `json:"media_resolution_preference,omitempty"`
	MediaFormatPreference     []string `json:"media_format_preference,omitempty"`
}

// Progress is streamed at a bounded rate (~10Hz) while the remote
// pipeline runs.
type Progress struct {
	FilesScanned int64   `json:"files_scanned"`
	BytesScanned int64   `json:"bytes_scanned"`
	Stage        string  `json:"stage"`
	PercentDone  float64 `json:"percent_done"`
}

// Result is the exactly-one terminal frame a successful run emits.
type Result struct {
	DuplicateSets    int           `json:"duplicate_sets"`
	BytesReclaimable int64         `json:"bytes_reclaimable"`
	Elapsed          time.Duration `json:"elapsed"`
	ReportJSON        []byte       `json:"report_json"`
}

// Error is the terminal frame sent in place of Result when the run
// fails before producing one.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Log carries a single server-side log line, forwarded for visibility
// when the client isn't running with -v itself.
type Log struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
