package implicit

import "math"

// rvmin returns the minimum of v, rounded with radius r where another
// value lies within exactRange of it.
//
// Closeness is tracked in a single pass: the flag is reset whenever a new
// minimum is found farther than exactRange below the previous one, so a
// tie with an earlier value can be missed. Far from ties the literal
// minimum is returned and the field stays exact.
func rvmin(v []float64, r, exactRange float64) float64 {
	closeMin := false
	minimum := math.Inf(1)
	for _, x := range v {
		if x < minimum {
			closeMin = minimum-x < exactRange
			minimum = x
		} else if x-minimum < exactRange {
			closeMin = true
		}
	}
	if !closeMin {
		return minimum
	}
	// Smooth minimum after http://iquilezles.org/www/articles/smin/smin.htm,
	// shifted by the minimum so the exponentials stay in [exp(-4), 1].
	r4 := r / 4
	limit := minimum + r
	sum := 0.0
	for _, x := range v {
		if x < limit {
			sum += math.Exp(-(x - minimum) / r4)
		}
	}
	return minimum - r4*math.Log(sum)
}

// rvmax mirrors rvmin for the maximum.
func rvmax(v []float64, r, exactRange float64) float64 {
	closeMax := false
	maximum := math.Inf(-1)
	for _, x := range v {
		if x > maximum {
			closeMax = x-maximum < exactRange
			maximum = x
		} else if maximum-x < exactRange {
			closeMax = true
		}
	}
	if !closeMax {
		return maximum
	}
	r4 := r / 4
	limit := maximum - r
	sum := 0.0
	for _, x := range v {
		if x > limit {
			sum += math.Exp((x - maximum) / r4)
		}
	}
	return maximum + r4*math.Log(sum)
}
