package media

import (
	"context"

	"dupsync/internal/model"
)

// FileError pairs a FileRecord with the error that occurred while
// fingerprinting it, mirroring dedup.FileError; these never abort the
// run, they just drop the record from media grouping.
type FileError struct {
	Record model.FileRecord
	Err    error
}

// Fingerprinters holds one capability per Kind. DefaultFingerprinters
// wires the concrete implementations this module ships; tests can
// substitute fakes per Kind without touching the dispatch logic below.
type Fingerprinters struct {
	Image Fingerprinter
	Video Fingerprinter
	Audio Fingerprinter
}

// DefaultFingerprinters returns the perceptual-hash, frame-sampling,
// and chromaprint fingerprinters this package implements.
func DefaultFingerprinters() Fingerprinters {
	return Fingerprinters{
		Image: &ImageFingerprinter{},
		Video: &VideoFingerprinter{},
		Audio: &AudioFingerprinter{},
	}
}

// FingerprintAll sniffs each record's Kind and dispatches it to the
// matching Fingerprinter, skipping anything DetectKind can't classify
// as media (it stays in the byte-identical pipeline untouched) and
// collecting per-file fingerprint failures the same way dedup.Group
// collects hashing failures instead of aborting the run.
func FingerprintAll(ctx context.Context, records []model.FileRecord, fps Fingerprinters) ([]Item, []FileError) {
	var items []Item
	var errs []FileError
	for _, rec := range records {
		kind, err := DetectKind(rec.AbsolutePath)
		if err != nil || kind == KindUnknown {
			continue
		}

		var fp Fingerprinter
		switch kind {
		case KindImage:
			fp = fps.Image
		case KindVideo:
			fp = fps.Video
		case KindAudio:
			fp = fps.Audio
		}
		if fp == nil {
			continue
		}

		fingerprint, err := fp.Fingerprint(ctx, rec.AbsolutePath)
		if err != nil {
			errs = append(errs, FileError{Record: rec, Err: err})
			continue
		}
		items = append(items, Item{Record: rec, Fingerprint: fingerprint})
	}
	return items, errs
}
