package media

import (
	"fmt"
	"strconv"
	"strings"

	"dupsync/internal/dedup/selection"
	"dupsync/internal/model"
)

// DefaultFormatPreference is the ordered format list a media-aware
// run falls back to when none is configured: raw/lossless formats
// ahead of the common lossy ones, mirroring the original
// implementation's default ordering.
var DefaultFormatPreference = []string{
	"raw", "arw", "cr2", "nef", "orf", "rw2",
	"png", "tiff", "bmp",
	"jpg", "jpeg", "mp4", "mov", "mp3", "flac", "wav",
}

// SelectionConfig configures the media-aware kept-member cascade.
type SelectionConfig struct {
	// ResolutionPreference is "highest", "lowest", an exact "WxH", or
	// empty to skip straight to the format preference.
	ResolutionPreference string
	// FormatPreference is the ordered list of preferred formats,
	// earliest wins; empty falls straight through to Fallback.
	FormatPreference []string
}

// SelectKept chooses the kept member of a media DuplicateSet per the
// declared preference cascade: (1) resolution preference narrows the
// candidates to whichever best matches ResolutionPreference, (2)
// format preference narrows further by FormatPreference, (3) whatever
// candidates remain tied are handed to the ordinary C5 strategy. This
// mirrors selection.Apply's shape (a DuplicateSet in, one with
// KeptIndex/Rationale filled in out) so callers can treat media and
// byte-identical sets identically once this returns.
func SelectKept(ms MediaDuplicateSet, cfg SelectionConfig, fallback selection.Strategy) (model.DuplicateSet, error) {
	set := ms.Set
	if len(set.Files) == 0 {
		return set, fmt.Errorf("media: empty duplicate set")
	}
	if len(set.Files) != len(ms.Infos) {
		return set, fmt.Errorf("media: %d files but %d infos", len(set.Files), len(ms.Infos))
	}

	candidates := make([]int, len(set.Files))
	for i := range candidates {
		candidates[i] = i
	}

	candidates = narrowByResolution(candidates, ms.Infos, cfg.ResolutionPreference)
	candidates = narrowByFormat(candidates, ms.Infos, cfg.FormatPreference)

	if len(candidates) == 1 {
		set.KeptIndex = candidates[0]
		set.Rationale = "media-preference"
		return set, nil
	}

	sub := model.DuplicateSet{Digest: set.Digest, Files: make([]model.FileRecord, len(candidates))}
	for i, idx := range candidates {
		sub.Files[i] = set.Files[idx]
	}
	applied, err := selection.Apply(sub, fallback)
	if err != nil {
		return set, err
	}
	set.KeptIndex = candidates[applied.KeptIndex]
	set.Rationale = "media-preference+" + applied.Rationale
	return set, nil
}

// narrowByResolution keeps only the candidates that best satisfy pref,
// leaving candidates untouched when pref is empty or no candidate
// carries usable dimensions.
func narrowByResolution(candidates []int, infos []Info, pref string) []int {
	if pref == "" {
		return candidates
	}

	if w, h, ok := parseExactResolution(pref); ok {
		var matched []int
		for _, idx := range candidates {
			if infos[idx].Width == w && infos[idx].Height == h {
				matched = append(matched, idx)
			}
		}
		if len(matched) > 0 {
			return matched
		}
		return candidates
	}

	usable := make([]int, 0, len(candidates))
	for _, idx := range candidates {
		if infos[idx].Width > 0 && infos[idx].Height > 0 {
			usable = append(usable, idx)
		}
	}
	if len(usable) == 0 {
		return candidates
	}

	best := usable[0]
	bestArea := area(infos[best])
	for _, idx := range usable[1:] {
		a := area(infos[idx])
		switch pref {
		case "lowest":
			if a < bestArea {
				best, bestArea = idx, a
			}
		default: // "highest" and any other value default to highest
			if a > bestArea {
				best, bestArea = idx, a
			}
		}
	}

	var matched []int
	for _, idx := range usable {
		if area(infos[idx]) == bestArea {
			matched = append(matched, idx)
		}
	}
	return matched
}

// narrowByFormat keeps only the candidates matching the first entry of
// pref present among them, leaving candidates untouched when pref is
// empty or none of its entries match anything present.
func narrowByFormat(candidates []int, infos []Info, pref []string) []int {
	if len(pref) == 0 {
		return candidates
	}
	for _, want := range pref {
		var matched []int
		for _, idx := range candidates {
			if strings.EqualFold(infos[idx].Format, want) {
				matched = append(matched, idx)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	return candidates
}

func area(i Info) int {
	return i.Width * i.Height
}

// parseExactResolution parses a "WxH" exact-resolution preference,
// e.g. "1920x1080".
func parseExactResolution(s string) (w, h int, ok bool) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	wi, err1 := strconv.Atoi(parts[0])
	hi, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return wi, hi, true
}
