package media

import "errors"

var (
	errMismatchedAlgorithm  = errors.New("media: cannot compare digests produced by different algorithms")
	errUnsupportedAlgorithm = errors.New("media: algorithm is not a perceptual hash")
	errUndecodable          = errors.New("media: file could not be decoded for fingerprinting")
)
