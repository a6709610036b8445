package auction

import (
	"math/rand"
	"time"
)

// epoch is the origin bucket boundaries are measured from.
var epoch = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

// legacyCutoff is the boundary below which high-volume tags get their
// bucket randomized rather than computed - a data-cleanup fixup for
// pre-migration rows whose end timestamps predate the bucketing scheme.
var legacyCutoff = time.Date(2000, 6, 1, 0, 0, 0, 0, time.UTC)

const (
	ordinaryBucketWidth   = 7 * 24 * time.Hour
	highVolumeBucketWidth = 12 * time.Hour
	legacySmallBucketSpan = 64
)

// isHighVolumeTag reports whether tag uses the finer 12-hour bucket
// width instead of the ordinary 7-day width.
func isHighVolumeTag(tag string) bool {
	return tag == "ENCHANTED_BOOK" || tag == "" || tag == "unknown"
}

// Bucket maps (tag, end) to the short integer bucket key used as the
// second half of the hot store's partition key. It is deterministic and
// side-effect free, except for the legacy pre-2000 fixup described on
// legacyCutoff, which is seeded so that it is reproducible per call
// rather than genuinely random.
func Bucket(tag string, end time.Time) int16 {
	highVolume := isHighVolumeTag(tag)
	if highVolume && end.Before(legacyCutoff) {
		return legacyBucket(tag, end)
	}

	width := ordinaryBucketWidth
	if highVolume {
		width = highVolumeBucketWidth
	}

	elapsed := end.Sub(epoch)
	if elapsed < 0 {
		elapsed = 0
	}
	return int16(elapsed / width)
}

// BucketSeeded is Bucket's legacy fixup with the caller supplying the
// seed explicitly (e.g. derived from the auction uuid). Tests pin the
// seed to get a reproducible value; the fixup only has to be
// side-effect free per call, not globally deterministic.
func BucketSeeded(tag string, end time.Time, seed int64) int16 {
	if !isHighVolumeTag(tag) || !end.Before(legacyCutoff) {
		return Bucket(tag, end)
	}
	r := rand.New(rand.NewSource(seed))
	return int16(r.Intn(legacySmallBucketSpan))
}

func legacyBucket(tag string, end time.Time) int16 {
	seed := end.UnixNano() ^ int64(len(tag))
	return BucketSeeded(tag, end, seed)
}

// DateOf returns the start-of-bucket date for (tag, bucket) - the
// inverse of Bucket for non-legacy buckets. Legacy (randomized) buckets
// share their values with ordinary small buckets, so DateOf maps them
// like any other bucket; only a negative bucket yields the zero time.
func DateOf(tag string, bucket int16) time.Time {
	if bucket < 0 {
		return time.Time{}
	}
	width := ordinaryBucketWidth
	if isHighVolumeTag(tag) {
		width = highVolumeBucketWidth
	}
	return epoch.Add(time.Duration(bucket) * width)
}
