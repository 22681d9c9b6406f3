// Package metrics provides Prometheus instrumentation for bytevault.
package metrics

// VerificationRequest records a verification request. Kind distinguishes
// multi-part from standard-json; result is success or failure.
func VerificationRequest(kind, result string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(kind, result).Inc()
}

// Match records one matched side of a verified contract.
func Match(side, matchType string) {
	if !enabled {
		return
	}
	matchTotal.WithLabelValues(side, matchType).Inc()
}

// ImportItem records the outcome of one batch import item.
func ImportItem(status string) {
	if !enabled {
		return
	}
	importItemTotal.WithLabelValues(status).Inc()
}

// Lookup records a lookup request.
func Lookup(kind, status string) {
	if !enabled {
		return
	}
	lookupTotal.WithLabelValues(kind, status).Inc()
}
