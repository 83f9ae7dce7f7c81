package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"dupsync/internal/model"
)

// AudioFingerprinter downmixes to mono and produces an acoustic
// fingerprint by exec'ing ffmpeg to normalize the stream and fpcalc
// (the chromaprint reference CLI) to fingerprint it, the same
// shell-out-to-a-real-tool idiom used for video keyframes and for the
// teacher's ssh/rsync transport.
//
// The fingerprint is tagged AlgoAHash: it is not an image average
// hash, but the extended digest tag set only carries three media
// slots (phash/vhash/ahash). The image fingerprinter also emits ahash
// when UseAverageHash is set; Similarity tells the two apart by digest
// length (8 bytes for the image hash).
type AudioFingerprinter struct {
	FFmpegPath string
	FpcalcPath string
}

func (f *AudioFingerprinter) ffmpegBin() string {
	if f.FFmpegPath != "" {
		return f.FFmpegPath
	}
	return "ffmpeg"
}

func (f *AudioFingerprinter) fpcalcBin() string {
	if f.FpcalcPath != "" {
		return f.FpcalcPath
	}
	return "fpcalc"
}

func (f *AudioFingerprinter) Fingerprint(ctx context.Context, path string) (Fingerprint, error) {
	tmp, err := os.CreateTemp("", "dupsync-audio-*.wav")
	if err != nil {
		return Fingerprint{}, fmt.Errorf("media: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	norm := exec.CommandContext(ctx, f.ffmpegBin(),
		"-y", "-loglevel", "error",
		"-i", path,
		"-ac", "1", "-ar", "11025",
		tmpPath,
	)
	if err := norm.Run(); err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %s: %v", errUndecodable, path, err)
	}

	out, err := exec.CommandContext(ctx, f.fpcalcBin(), "-raw", "-length", "60", tmpPath).Output()
	if err != nil {
		return Fingerprint{}, fmt.Errorf("media: fpcalc %s: %w", path, err)
	}

	bytes := parseFpcalcRaw(out)
	if len(bytes) == 0 {
		return Fingerprint{}, fmt.Errorf("%w: %s: empty fingerprint", errUndecodable, path)
	}

	return Fingerprint{
		Digest: model.Digest{Algorithm: model.AlgoAHash, Bytes: bytes},
		Info:   Info{Format: "audio"},
	}, nil
}

// parseFpcalcRaw turns "FINGERPRINT=123,-456,789,...\n" lines into a
// flat byte slice, 4 bytes per signed 32-bit fingerprint element, so
// it fits model.Digest's []byte shape.
func parseFpcalcRaw(out []byte) []byte {
	const prefix = "FINGERPRINT="
	line := string(trimNewline(out))
	idx := indexOf(line, prefix)
	if idx < 0 {
		return nil
	}
	line = line[idx+len(prefix):]

	var result []byte
	var cur int32
	var neg bool
	var digits bool
	flush := func() {
		if !digits {
			return
		}
		if neg {
			cur = -cur
		}
		result = append(result, byte(cur>>24), byte(cur>>16), byte(cur>>8), byte(cur))
		cur, neg, digits = 0, false, false
	}
	for _, r := range line {
		switch {
		case r == ',' || r == '\n' || r == '\r':
			flush()
		case r == '-':
			neg = true
		case r >= '0' && r <= '9':
			cur = cur*10 + int32(r-'0')
			digits = true
		}
	}
	flush()
	return result
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

var _ Fingerprinter = (*AudioFingerprinter)(nil)
