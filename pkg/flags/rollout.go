package flags

import (
	"math"
	"unicode/utf16"
)

// Hash32 computes the engine's stable string hash: multiplier-31 accumulation
// over the UTF-16 code units of s with 32-bit signed wraparound.
//
// The function is a compatibility contract, not an implementation detail:
// every rollout bucket and variant assignment in production derives from it,
// so changing the algorithm reshuffles every user's buckets and must be
// treated as a breaking change. The regression fixtures in the test suite pin
// it with literal expected values.
func Hash32(s string) int32 {
	var h int32
	for _, cu := range utf16.Encode([]rune(s)) {
		h = h<<5 - h + int32(cu)
	}
	return h
}

// Bucket maps an arbitrary string to a stable bucket in [0,100).
func Bucket(s string) int {
	return int(absHash(s) % 100)
}

// absHash widens before taking the absolute value: int32 negation overflows
// on MinInt32, while int64 maps -2^31 cleanly to +2^31.
func absHash(s string) int64 {
	h := int64(Hash32(s))
	if h < 0 {
		h = -h
	}
	return h
}

// rolloutKey carries a flag-key suffix so the same user lands in independent
// buckets for different flags.
func rolloutKey(userID, flagKey string) string {
	return userID + ":" + flagKey
}

// variantKey uses a suffix distinct from rolloutKey to decorrelate variant
// assignment from rollout inclusion.
func variantKey(userID, flagKey string) string {
	return userID + ":" + flagKey + ":variant"
}

// InRollout reports whether the user identified by userID falls inside the
// flag's percentage gate. An empty userID is valid and deterministic:
// anonymous contexts all share one bucket.
func InRollout(userID, flagKey string, percentage int) bool {
	return Bucket(rolloutKey(userID, flagKey)) < percentage
}

// SelectVariant deterministically assigns one of the flag's variants to the
// given user. When every variant carries a weight, the hash point is mapped
// onto cumulative weight ranges with the last variant as the numerical-edge
// fallback; otherwise variants are drawn uniformly. Returns the empty string
// when the flag has no variants.
func SelectVariant(f *Flag, userID string) string {
	if f == nil || len(f.Variants) == 0 {
		return ""
	}
	h := absHash(variantKey(userID, f.Key))

	if !weighted(f.Variants) {
		return f.Variants[h%int64(len(f.Variants))].Key
	}

	total := 0.0
	for _, v := range f.Variants {
		total += *v.Weight
	}
	last := f.Variants[len(f.Variants)-1].Key
	if total <= 0 {
		return last
	}
	point := math.Mod(float64(h), total)
	cumulative := 0.0
	for _, v := range f.Variants {
		cumulative += *v.Weight
		if point < cumulative {
			return v.Key
		}
	}
	return last
}

func weighted(variants []Variant) bool {
	for _, v := range variants {
		if v.Weight == nil {
			return false
		}
	}
	return len(variants) > 0
}
