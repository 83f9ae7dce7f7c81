package media

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"dupsync/internal/model"
)

// ImageFingerprinter computes a 64-bit perceptual hash (pHash by
// default, aHash as a faster alternative) for still images, grounded
// on goimagehash the way lumipallolabs-diskdive's getFileType reads
// mimetype for content routing.
type ImageFingerprinter struct {
	// UseAverageHash switches from the DCT-based perceptual hash to
	// the cheaper average hash; pHash is the default because it is
	// more resilient to re-encoding and minor crops.
	UseAverageHash bool
}

func (f *ImageFingerprinter) Fingerprint(_ context.Context, path string) (Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("media: open %s: %w", path, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %s: %v", errUndecodable, path, err)
	}

	var (
		hash *goimagehash.ImageHash
		algo model.Algorithm
	)
	if f.UseAverageHash {
		hash, err = goimagehash.AverageHash(img)
		algo = model.AlgoAHash
	} else {
		hash, err = goimagehash.PerceptionHash(img)
		algo = model.AlgoPHash
	}
	if err != nil {
		return Fingerprint{}, fmt.Errorf("media: hash %s: %w", path, err)
	}

	b := img.Bounds()
	return Fingerprint{
		Digest: model.Digest{Algorithm: algo, Bytes: uint64ToBytes(hash.GetHash())},
		Info:   Info{Width: b.Dx(), Height: b.Dy(), Format: format},
	}, nil
}

var _ Fingerprinter = (*ImageFingerprinter)(nil)
