package domain

// Rating buckets span the half-star scale from one to ten stars, stored as
// the doubled value so every bucket is a small integer (2, 3, ..., 20).
const (
	MinRatingBucket = 2
	MaxRatingBucket = 20
)

// RatingFrequencies maps a rating bucket to the number of library entries
// holding that rating. Every known bucket is always present; absent
// observations are explicit zeros rather than missing keys.
type RatingFrequencies map[int]int64

// NewRatingFrequencies returns a mapping covering every known bucket with a
// count of zero.
func NewRatingFrequencies() RatingFrequencies {
	f := make(RatingFrequencies, MaxRatingBucket-MinRatingBucket+1)
	for b := MinRatingBucket; b <= MaxRatingBucket; b++ {
		f[b] = 0
	}
	return f
}

// ValidBucket reports whether b is one of the known rating buckets.
func ValidBucket(b int) bool {
	return b >= MinRatingBucket && b <= MaxRatingBucket
}

// Normalize returns a copy with every known bucket present, filling missing
// buckets with zero. Unknown buckets are dropped.
func (f RatingFrequencies) Normalize() RatingFrequencies {
	out := NewRatingFrequencies()
	for b, count := range f {
		if ValidBucket(b) {
			out[b] = count
		}
	}
	return out
}

// Total returns the number of observations across all buckets.
func (f RatingFrequencies) Total() int64 {
	var total int64
	for b, count := range f {
		if ValidBucket(b) {
			total += count
		}
	}
	return total
}

// AveragePercent derives the mean rating as a percentage. Bucket b
// corresponds to b*5 percent, so the result lies in (0, 100] whenever at
// least one observation exists. Returns nil with no observations.
func (f RatingFrequencies) AveragePercent() *float64 {
	total := f.Total()
	if total == 0 {
		return nil
	}
	var weighted int64
	for b, count := range f {
		if ValidBucket(b) {
			weighted += int64(b) * count
		}
	}
	avg := float64(weighted) * 5.0 / float64(total)
	return &avg
}
