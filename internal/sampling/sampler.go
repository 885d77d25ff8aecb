// Package sampling narrows extracted frames down to the ones worth paying to classify.
package sampling

import (
	"sort"

	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

// Strategy is recorded in analysis metadata.
const Strategy = "smart-uniform"

// SelectFrames keeps the first and last frame and strides through the rest so
// that at most maxCount frames remain, in their original order. When
// len(frames) <= maxCount the input is returned unchanged.
func SelectFrames(frames []entity.Frame, maxCount int) []entity.Frame {
	n := len(frames)
	if maxCount < 2 {
		maxCount = 2
	}
	if n <= maxCount {
		return frames
	}

	picked := map[int]bool{0: true, n - 1: true}
	if maxCount > 2 {
		step := (n - 2) / (maxCount - 2)
		for i := 1; i < maxCount-1; i++ {
			picked[min(i*step, n-2)] = true
		}
	}

	positions := make([]int, 0, len(picked))
	for p := range picked {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	out := make([]entity.Frame, len(positions))
	for i, p := range positions {
		out[i] = frames[p]
	}
	return out
}
