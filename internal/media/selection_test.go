package media

import (
	"testing"
	"time"

	"dupsync/internal/dedup/selection"
	"dupsync/internal/model"
)

func mediaSet(paths []string, infos []Info) MediaDuplicateSet {
	files := make([]model.FileRecord, len(paths))
	for i, p := range paths {
		files[i] = model.FileRecord{AbsolutePath: p, RelativePath: p, ModTime: time.Unix(int64(i), 0)}
	}
	return MediaDuplicateSet{
		Set:   model.DuplicateSet{Files: files},
		Infos: infos,
	}
}

// S6: the kept member is chosen by the declared format preference
// once resolution does not break the tie.
func TestSelectKeptPicksDeclaredFormatPreference(t *testing.T) {
	ms := mediaSet(
		[]string{"/a.jpg", "/a.png"},
		[]Info{{Width: 1920, Height: 1080, Format: "jpeg"}, {Width: 1920, Height: 1080, Format: "png"}},
	)
	cfg := SelectionConfig{FormatPreference: []string{"png", "jpg", "jpeg"}}
	set, err := SelectKept(ms, cfg, selection.NewestModified)
	if err != nil {
		t.Fatal(err)
	}
	if set.KeptIndex != 1 {
		t.Fatalf("expected index 1 (/a.png) kept, got %d", set.KeptIndex)
	}
}

func TestSelectKeptPrefersHighestResolution(t *testing.T) {
	ms := mediaSet(
		[]string{"/small.jpg", "/large.jpg"},
		[]Info{{Width: 640, Height: 480, Format: "jpeg"}, {Width: 1920, Height: 1080, Format: "jpeg"}},
	)
	set, err := SelectKept(ms, SelectionConfig{ResolutionPreference: "highest"}, selection.NewestModified)
	if err != nil {
		t.Fatal(err)
	}
	if set.KeptIndex != 1 {
		t.Fatalf("expected index 1 (large) kept, got %d", set.KeptIndex)
	}
}

func TestSelectKeptPrefersLowestResolution(t *testing.T) {
	ms := mediaSet(
		[]string{"/small.jpg", "/large.jpg"},
		[]Info{{Width: 640, Height: 480, Format: "jpeg"}, {Width: 1920, Height: 1080, Format: "jpeg"}},
	)
	set, err := SelectKept(ms, SelectionConfig{ResolutionPreference: "lowest"}, selection.NewestModified)
	if err != nil {
		t.Fatal(err)
	}
	if set.KeptIndex != 0 {
		t.Fatalf("expected index 0 (small) kept, got %d", set.KeptIndex)
	}
}

func TestSelectKeptExactResolution(t *testing.T) {
	ms := mediaSet(
		[]string{"/a.jpg", "/b.jpg", "/c.jpg"},
		[]Info{
			{Width: 640, Height: 480, Format: "jpeg"},
			{Width: 1920, Height: 1080, Format: "jpeg"},
			{Width: 1280, Height: 720, Format: "jpeg"},
		},
	)
	set, err := SelectKept(ms, SelectionConfig{ResolutionPreference: "1280x720"}, selection.NewestModified)
	if err != nil {
		t.Fatal(err)
	}
	if set.KeptIndex != 2 {
		t.Fatalf("expected index 2 (exact match) kept, got %d", set.KeptIndex)
	}
}

// Resolution preference narrows first; format preference only breaks
// a remaining tie among equally-preferred resolutions.
func TestSelectKeptResolutionNarrowsBeforeFormat(t *testing.T) {
	ms := mediaSet(
		[]string{"/hi.jpg", "/hi.png", "/lo.png"},
		[]Info{
			{Width: 1920, Height: 1080, Format: "jpeg"},
			{Width: 1920, Height: 1080, Format: "png"},
			{Width: 640, Height: 480, Format: "png"},
		},
	)
	cfg := SelectionConfig{ResolutionPreference: "highest", FormatPreference: []string{"png", "jpg", "jpeg"}}
	set, err := SelectKept(ms, cfg, selection.NewestModified)
	if err != nil {
		t.Fatal(err)
	}
	if set.KeptIndex != 1 {
		t.Fatalf("expected index 1 (/hi.png: highest res, then preferred format) kept, got %d", set.KeptIndex)
	}
}

// With neither preference configured, or neither breaking the tie,
// selection falls back to the ordinary C5 strategy.
func TestSelectKeptFallsBackToStrategy(t *testing.T) {
	ms := mediaSet(
		[]string{"/a.jpg", "/b.jpg"},
		[]Info{{Width: 1920, Height: 1080, Format: "jpeg"}, {Width: 1920, Height: 1080, Format: "jpeg"}},
	)
	set, err := SelectKept(ms, SelectionConfig{}, selection.OldestModified)
	if err != nil {
		t.Fatal(err)
	}
	if set.KeptIndex != 0 {
		t.Fatalf("expected index 0 (oldest modified) kept, got %d", set.KeptIndex)
	}
}
