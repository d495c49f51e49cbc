// Package scoring holds the pure classification rules applied inside the
// pipeline: the page size bucket and the winning-ad criteria.
package scoring

// SizeThresholds are the lower bounds of each bucket above XS. A page with
// zero active ads is always "inactif"; below S it is XS.
type SizeThresholds struct {
	S   int `json:"s"`
	M   int `json:"m"`
	L   int `json:"l"`
	XL  int `json:"xl"`
	XXL int `json:"xxl"`
}

// DefaultSizeThresholds returns the built-in bucket bounds.
func DefaultSizeThresholds() SizeThresholds {
	return SizeThresholds{S: 10, M: 20, L: 35, XL: 80, XXL: 150}
}

// SizeBucket maps an active-ad count to its bucket label. Pure function of
// (thresholds, count).
func SizeBucket(activeAds int, t SizeThresholds) string {
	switch {
	case activeAds <= 0:
		return "inactif"
	case activeAds < t.S:
		return "XS"
	case activeAds < t.M:
		return "S"
	case activeAds < t.L:
		return "M"
	case activeAds < t.XL:
		return "L"
	case activeAds < t.XXL:
		return "XL"
	default:
		return "XXL"
	}
}
