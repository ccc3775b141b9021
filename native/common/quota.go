package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaUsage captures the request counter for a caller within one window.
type QuotaUsage struct {
	ReqCount uint32
	WindowID uint64
}

// RequestQuota defines the per-caller request limit enforced on the query
// surface. A zero MaxRequestsPerWindow disables the limit.
type RequestQuota struct {
	MaxRequestsPerWindow uint32
	WindowSeconds        uint32
}

// CheckQuota verifies whether one additional request fits within the quota for
// the given window. The returned usage reflects the updated counter when the
// quota is not exceeded; on failure the previous usage is returned unchanged.
func CheckQuota(q RequestQuota, window uint64, prev QuotaUsage) (QuotaUsage, error) {
	next := prev
	if prev.WindowID != window {
		next = QuotaUsage{WindowID: window}
	}
	if next.ReqCount == math.MaxUint32 {
		return prev, ErrQuotaCounterOverflow
	}
	next.ReqCount++
	if q.MaxRequestsPerWindow > 0 && next.ReqCount > q.MaxRequestsPerWindow {
		return prev, ErrQuotaRequestsExceeded
	}
	return next, nil
}
