package digits

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/cardscan/internal/detection"
)

// TestOrder_PermutationInvariant verifies shuffling the input never changes
// the assembled string when left edges are distinct.
func TestOrder_PermutationInvariant(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("order is independent of input order", prop.ForAll(
		func(n int, seed int64) bool {
			dets := make([]detection.Result, n)
			want := ""
			for i := range n {
				label := strconv.Itoa(i % 10)
				dets[i] = digitAt(label, float64(i*25))
				want += label
			}
			rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: deterministic shuffle for testing
			rng.Shuffle(len(dets), func(i, j int) { dets[i], dets[j] = dets[j], dets[i] })

			got, err := Order(dets)
			return err == nil && string(got) == want && got.Len() == n
		},
		gen.IntRange(0, 19),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
