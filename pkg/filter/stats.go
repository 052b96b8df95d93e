package filter

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// QuartileMethod selects how Q1 and Q3 are estimated
type QuartileMethod string

const (
	// MethodHinges takes the medians of the lower and upper halves, leaving the
	// middle element out when the count is odd (Tukey's hinges)
	MethodHinges QuartileMethod = "hinges"
	// MethodLinear interpolates between closest ranks, like numpy.percentile
	MethodLinear QuartileMethod = "linear"
)

// ParseQuartileMethod accepts "hinges" or "linear"; empty means hinges
func ParseQuartileMethod(s string) (QuartileMethod, error) {
	switch QuartileMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodHinges:
		return MethodHinges, nil
	case MethodLinear:
		return MethodLinear, nil
	default:
		return "", fmt.Errorf("unknown quartile method %q (want hinges or linear)", s)
	}
}

// Bounds are the IQR outlier fences of a distribution
type Bounds struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ComputeBounds returns Q1 - 1.5*IQR and Q3 + 1.5*IQR. An empty distribution
// has all fences at zero.
func ComputeBounds(data []float64, method QuartileMethod) Bounds {
	q1, q3 := Quartiles(data, method)
	iqr := q3 - q1
	return Bounds{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: q1 - 1.5*iqr,
		Upper: q3 + 1.5*iqr,
	}
}

// Quartiles returns Q1 and Q3 of data; data is not modified
func Quartiles(data []float64, method QuartileMethod) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	if method == MethodLinear {
		return Percentile(sorted, 25), Percentile(sorted, 75)
	}

	n := len(sorted)
	if n == 1 {
		return sorted[0], sorted[0]
	}
	return median(sorted[:n/2]), median(sorted[(n+1)/2:])
}

// Percentile interpolates linearly between closest ranks of sorted data
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
