package views

import (
	"github.com/zenpa1/budget-tracker/internal/cache"
	"github.com/zenpa1/budget-tracker/internal/models"
)

// FeedbackBucket groups feedback statuses the way the HR inbox tabs do.
type FeedbackBucket string

const (
	BucketAll      FeedbackBucket = "all"
	BucketActive   FeedbackBucket = "active"
	BucketResolved FeedbackBucket = "resolved"
)

// Valid reports whether b is a known bucket.
func (b FeedbackBucket) Valid() bool {
	switch b {
	case BucketAll, BucketActive, BucketResolved:
		return true
	}
	return false
}

// Contains reports whether status falls in the bucket.
func (b FeedbackBucket) Contains(status models.FeedbackStatus) bool {
	switch b {
	case BucketActive:
		return status.Open()
	case BucketResolved:
		return status == models.FeedbackStatusResolved || status == models.FeedbackStatusClosed
	}
	return true
}

// FeedbackByStatus returns the reports with the given status.
func FeedbackByStatus(s cache.Snapshot, status models.FeedbackStatus) []models.FeedbackReport {
	var out []models.FeedbackReport
	for _, r := range s.FeedbackReports {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// FeedbackInBucket returns the reports that fall in bucket.
func FeedbackInBucket(s cache.Snapshot, bucket FeedbackBucket) []models.FeedbackReport {
	var out []models.FeedbackReport
	for _, r := range s.FeedbackReports {
		if bucket.Contains(r.Status) {
			out = append(out, r)
		}
	}
	return out
}

// BucketCounts is the number of reports per inbox tab.
type BucketCounts struct {
	All      int `json:"all"`
	Active   int `json:"active"`
	Resolved int `json:"resolved"`
}

// FeedbackBuckets counts reports per inbox tab.
func FeedbackBuckets(s cache.Snapshot) BucketCounts {
	counts := BucketCounts{All: len(s.FeedbackReports)}
	for _, r := range s.FeedbackReports {
		if BucketActive.Contains(r.Status) {
			counts.Active++
		}
		if BucketResolved.Contains(r.Status) {
			counts.Resolved++
		}
	}
	return counts
}
