// Package entropy scores how random a file's content looks.
//
// Encrypted and compressed data approach 8 bits per byte while text sits
// around 4-5, so a sharp rise in a file's score is a useful proxy for the
// file having been encrypted in place.
package entropy

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// SampleLimit is the number of leading bytes read from a file. Changes past
// this offset do not affect the score.
const SampleLimit = 200_000

// MaxBitsPerByte is the upper bound of Shannon.
const MaxBitsPerByte = 8.0

// ErrNotRegular is returned by SampleFile for directories, devices and other
// non-regular files.
var ErrNotRegular = errors.New("entropy: not a regular file")

// Shannon returns the Shannon entropy of data in bits per byte, in [0, 8].
// Empty input yields 0.
func Shannon(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var freq [256]int
	for _, b := range data {
		freq[b]++
	}

	n := float64(len(data))
	var h float64
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}

	// Rounding can push a uniform distribution a hair past 8.
	return math.Min(math.Max(h, 0), MaxBitsPerByte)
}

// SampleFile reads at most limit leading bytes of the regular file at path.
func SampleFile(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotRegular
	}

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// File returns the entropy of the first SampleLimit bytes of path.
func File(path string) (float64, error) {
	data, err := SampleFile(path, SampleLimit)
	if err != nil {
		return 0, err
	}
	return Shannon(data), nil
}
