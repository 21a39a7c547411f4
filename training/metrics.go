package training

import "gonum.org/v1/gonum/floats"

// Accuracy is the ranked-match accuracy of a model over a dataset: a
// prediction hits at rank k when the true label appears among the k
// highest-scoring categories. Values are percentages.
type Accuracy struct {
	Top1 float64
	Top5 float64
}

// TopIndices returns the indices of the k largest values, best first. When k
// exceeds len(vals) every index is returned. Ties break arbitrarily.
func TopIndices(vals []float32, k int) []int {
	if k > len(vals) {
		k = len(vals)
	}
	if k <= 0 {
		return nil
	}
	sorted := make([]float64, len(vals))
	order := make([]int, len(vals))
	for i, v := range vals {
		sorted[i] = float64(v)
	}
	floats.Argsort(sorted, order)

	top := make([]int, 0, k)
	for i := len(order) - 1; i >= len(order)-k; i-- {
		top = append(top, order[i])
	}
	return top
}

// rankedHits counts the rows whose true label appears among the k highest
// logits. Both TopKAccuracy and Evaluate score through here.
func rankedHits(logits [][]float32, labels []int32, k int) int {
	hits := 0
	for i, row := range logits {
		for _, idx := range TopIndices(row, k) {
			if int32(idx) == labels[i] {
				hits++
				break
			}
		}
	}
	return hits
}

// TopKAccuracy returns the percentage of rows whose true label is among the
// k highest logits. logits holds one score vector per row and labels the
// matching true class indices.
func TopKAccuracy(logits [][]float32, labels []int32, k int) float64 {
	if len(logits) == 0 {
		return 0
	}
	return 100 * float64(rankedHits(logits, labels, k)) / float64(len(logits))
}
