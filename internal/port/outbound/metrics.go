package outbound

import "time"

// MetricsPort records generation and quota metrics.
type MetricsPort interface {
	RecordProviderAttempt(kind, provider, status string, duration time.Duration)
	RecordChainExhausted(kind string)
	RecordQuotaDenied(tier string)
	RecordQuotaConsumed(tier string)
	RecordBlobsDeleted(count int)
}
