// Package digits assembles recognizer detections into the digit string
// read left to right.
package digits

import (
	"cmp"
	"slices"
	"strings"

	"github.com/MeKo-Tech/cardscan/internal/detection"
)

// Order concatenates detection labels by ascending box left edge. Equal
// edges keep their input order. All boxes must share one space.
func Order(dets []detection.Result) (DigitString, error) {
	if len(dets) == 0 {
		return "", nil
	}
	space := dets[0].Box.Space
	for _, d := range dets[1:] {
		if err := d.Box.Expect("order digits", space); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	for _, d := range Sorted(dets) {
		sb.WriteString(d.Label)
	}
	return DigitString(sb.String()), nil
}

// Sorted returns a copy of dets in reading order.
func Sorted(dets []detection.Result) []detection.Result {
	sorted := slices.Clone(dets)
	slices.SortStableFunc(sorted, func(a, b detection.Result) int {
		return cmp.Compare(a.Box.MinX(), b.Box.MinX())
	})
	return sorted
}

// DecodeIndices maps a model's class-index output through alphabet.
// Negative and out-of-range indices are padding and are skipped.
func DecodeIndices(indices []int, alphabet Alphabet) DigitString {
	var sb strings.Builder
	for _, idx := range indices {
		if label, ok := alphabet.Label(idx); ok {
			sb.WriteString(label)
		}
	}
	return DigitString(sb.String())
}

// Labelled attaches alphabet labels to detections that only carry a class
// id. Detections whose id falls outside the alphabet are dropped.
func Labelled(dets []detection.Result, alphabet Alphabet) []detection.Result {
	out := make([]detection.Result, 0, len(dets))
	for _, d := range dets {
		label, ok := alphabet.Label(d.ClassID)
		if !ok {
			continue
		}
		d.Label = label
		out = append(out, d)
	}
	return out
}
