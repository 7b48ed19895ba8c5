package onnx

import (
	"fmt"

	"github.com/MeKo-Tech/cardscan/internal/detection"
	"github.com/MeKo-Tech/cardscan/internal/digits"
	"github.com/MeKo-Tech/cardscan/internal/geometry"
)

// SSDOutput holds the four tensors of a post-processed SSD head. Boxes are
// normalized [ymin, xmin, ymax, xmax] quadruples.
type SSDOutput struct {
	Boxes   []float32
	Classes []float32
	Scores  []float32
	Count   int
}

// DecodeSSD converts SSD output into results in space, scaled to an input
// of size. Class ids are shifted by labelOffset before the label lookup;
// unknown ids keep an empty label.
func DecodeSSD(out SSDOutput, size geometry.Size, space geometry.Space, labels digits.Alphabet, labelOffset int) ([]detection.Result, error) {
	if out.Count < 0 {
		return nil, fmt.Errorf("negative detection count %d", out.Count)
	}
	n := min(out.Count, len(out.Scores), len(out.Classes), len(out.Boxes)/4)

	results := make([]detection.Result, 0, n)
	for i := range n {
		ymin := clamp01(out.Boxes[4*i])
		xmin := clamp01(out.Boxes[4*i+1])
		ymax := clamp01(out.Boxes[4*i+2])
		xmax := clamp01(out.Boxes[4*i+3])
		if xmax <= xmin || ymax <= ymin {
			continue
		}

		id := int(out.Classes[i]) + labelOffset
		label, _ := labels.Label(id)
		results = append(results, detection.Result{
			Box: geometry.NewRect(space,
				xmin*size.W, ymin*size.H,
				(xmax-xmin)*size.W, (ymax-ymin)*size.H),
			Label:      label,
			ClassID:    id,
			Confidence: float64(out.Scores[i]),
		})
	}
	return results, nil
}

// DecodeSequence turns a greedy class-index sequence into one result per
// recognized symbol. Symbols get equal-width slots across the input in
// sequence order so that reading order survives left-to-right sorting.
// Negative and out-of-range indices are padding.
func DecodeSequence(indices []int64, size geometry.Size, space geometry.Space, labels digits.Alphabet) []detection.Result {
	type symbol struct {
		id    int
		label string
	}
	var symbols []symbol
	for _, idx := range indices {
		if label, ok := labels.Label(int(idx)); ok {
			symbols = append(symbols, symbol{id: int(idx), label: label})
		}
	}
	if len(symbols) == 0 {
		return nil
	}

	slot := size.W / float64(len(symbols))
	results := make([]detection.Result, len(symbols))
	for i, s := range symbols {
		results[i] = detection.Result{
			Box:        geometry.NewRect(space, float64(i)*slot, 0, slot, size.H),
			Label:      s.label,
			ClassID:    s.id,
			Confidence: 1,
		}
	}
	return results
}

func clamp01(v float32) float64 {
	return float64(min(max(v, 0), 1))
}
