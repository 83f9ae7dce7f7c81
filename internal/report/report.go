// Package report renders a completed run's duplicate sets and
// statistics into the structured document shape spec.md's external
// interfaces section defines, plus a human-readable table, the way
// the teacher's CLI favors a plain tabwriter summary over a bespoke
// pretty-printer.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"dupsync/internal/model"
)

// FileEntry is one duplicate set member in the rendered document.
type FileEntry struct {
	RootID       int    `json:"root_id"`
	RelativePath string `json:"relative_path"`
	AbsolutePath string `json:"absolute_path"`
	SizeBytes    int64  `json:"size_bytes"`
}

// SetEntry is one duplicate set in the rendered document.
type SetEntry struct {
	Digest    string      `json:"digest"`
	Files     []FileEntry `json:"files"`
	KeptIndex int         `json:"kept_index"`
	Rationale string      `json:"rationale"`
}

// Stats mirrors model.RunStats for JSON rendering with field names
// matching spec.md's report schema.
type Stats struct {
	FilesScanned     int64   `json:"files_scanned"`
	BytesScanned     int64   `json:"bytes_scanned"`
	DuplicateSets    int64   `json:"duplicate_sets"`
	BytesReclaimable int64   `json:"bytes_reclaimable"`
	PerFileErrors    int64   `json:"per_file_errors"`
	Cancelled        bool    `json:"cancelled"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
}

// Document is the full report: algorithm, the roots that were
// scanned, every duplicate set found, and aggregate Stats.
type Document struct {
	Algorithm     string     `json:"algorithm"`
	Roots         []string   `json:"roots"`
	DuplicateSets []SetEntry `json:"duplicate_sets"`
	Stats         Stats      `json:"stats"`
}

// BuildDocument assembles a Document from the dedup pipeline's output.
func BuildDocument(algo model.Algorithm, roots []model.Root, sets []model.DuplicateSet, stats model.RunStats) Document {
	rootStrs := make([]string, len(roots))
	for i, r := range roots {
		rootStrs[i] = r.String()
	}

	entries := make([]SetEntry, len(sets))
	for i, s := range sets {
		files := make([]FileEntry, len(s.Files))
		for j, f := range s.Files {
			files[j] = FileEntry{
				RootID:       f.RootID,
				RelativePath: f.RelativePath,
				AbsolutePath: f.AbsolutePath,
				SizeBytes:    f.SizeBytes,
			}
		}
		entries[i] = SetEntry{
			Digest:    digestLabel(s.Digest),
			Files:     files,
			KeptIndex: s.KeptIndex,
			Rationale: s.Rationale,
		}
	}

	return Document{
		Algorithm:     string(algo),
		Roots:         rootStrs,
		DuplicateSets: entries,
		Stats: Stats{
			FilesScanned:     stats.FilesScanned,
			BytesScanned:     stats.BytesScanned,
			DuplicateSets:    stats.DuplicateSets,
			BytesReclaimable: stats.BytesReclaimable,
			PerFileErrors:    stats.PerFileErrors,
			Cancelled:        stats.Cancelled,
			ElapsedSeconds:   stats.Elapsed.Seconds(),
		},
	}
}

func digestLabel(d model.Digest) string {
	if len(d.Bytes) == 0 {
		return string(d.Algorithm)
	}
	return string(d.Algorithm) + ":" + d.Hex()
}

// MarshalJSON renders doc as indented JSON, the textual-structured
// output format.
func MarshalJSON(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// WriteTable renders doc as a tab-aligned table, the
// table-structured output format, one row per duplicate set member.
func WriteTable(w *bytes.Buffer, doc Document) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIGEST\tKEPT\tSIZE\tPATH")
	for _, set := range doc.DuplicateSets {
		for i, f := range set.Files {
			kept := ""
			if i == set.KeptIndex {
				kept = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", truncateDigest(set.Digest), kept, f.SizeBytes, f.AbsolutePath)
		}
	}
	fmt.Fprintf(tw, "\n%d duplicate sets, %d bytes reclaimable\n", doc.Stats.DuplicateSets, doc.Stats.BytesReclaimable)
	return tw.Flush()
}

func truncateDigest(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:16]
}
