package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StorageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ottsync_storage_errors_total",
		Help: "Total number of swallowed key-value storage failures by operation",
	}, []string{"op"})

	BroadcastDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ottsync_broadcast_delivered_total",
		Help: "Total number of broadcast messages handed to listeners by channel",
	}, []string{"channel"})

	BroadcastDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ottsync_broadcast_dropped_total",
		Help: "Total number of broadcast messages dropped by channel and reason",
	}, []string{"channel", "reason"})

	SyncWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ottsync_sync_writes_total",
		Help: "Total number of remote personal shelf writes by result",
	}, []string{"result"})

	CoalescedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ottsync_coalesced_requests_total",
		Help: "Total number of catalog requests that joined an in-flight fetch",
	}, []string{"kind"})
)

// IncStorageError records a swallowed storage failure.
func IncStorageError(op string) {
	StorageErrorsTotal.WithLabelValues(orUnknown(op)).Inc()
}

// IncBroadcastDelivered records a message delivered to the listeners of channel.
func IncBroadcastDelivered(channel string) {
	BroadcastDeliveredTotal.WithLabelValues(orUnknown(channel)).Inc()
}

// IncBroadcastDrop records a dropped broadcast message with a concrete reason
// (closed, malformed, panic).
func IncBroadcastDrop(channel, reason string) {
	BroadcastDroppedTotal.WithLabelValues(orUnknown(channel), orUnknown(reason)).Inc()
}

// IncSyncWrite records the result of a remote shelf write (ok, error).
func IncSyncWrite(result string) {
	SyncWritesTotal.WithLabelValues(orUnknown(result)).Inc()
}

// IncCoalesced records a caller that piggy-backed on an in-flight fetch.
func IncCoalesced(kind string) {
	CoalescedRequestsTotal.WithLabelValues(orUnknown(kind)).Inc()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
