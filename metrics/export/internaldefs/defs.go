package internaldefs

import (
	"strconv"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

const namespace = "gosession_"

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

func counter(id goSession.MetricID, help string) CounterDef {
	return CounterDef{ID: id, Name: namespace + id.String() + "_total", Help: help}
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	counter(goSession.MetricSessionIssued, "Session families started by sign-up, sign-in or Issue."),
	counter(goSession.MetricRefreshSuccess, "Completed refresh credential rotations."),
	counter(goSession.MetricRefreshFailure, "Rotations rejected as expired or invalid."),
	counter(goSession.MetricRefreshReuseDetected, "Rotations classified as refresh credential reuse."),
	counter(goSession.MetricLineageRevoked, "Subject-wide session revocations."),
	counter(goSession.MetricLogout, "Single-session sign-outs."),
	counter(goSession.MetricRateLimitHit, "Requests denied by the rate gate."),
	counter(goSession.MetricStoreError, "Session store failures surfaced to callers."),
	counter(goSession.MetricSignUpSuccess, "Created accounts."),
	counter(goSession.MetricSignUpDuplicate, "Sign-ups rejected for an existing email."),
	counter(goSession.MetricSignInSuccess, "Successful sign-ins."),
	counter(goSession.MetricSignInFailure, "Sign-ins rejected for bad credentials."),
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRotateLatency, Name: namespace + goSession.MetricRotateLatency.String() + "_seconds", Help: "Refresh rotation latency."},
}

// Audit dispatcher counters. They are read from the engine directly rather
// than from the metrics snapshot.
const (
	AuditDroppedName = namespace + "audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
	AuditInlineName  = namespace + "audit_inline_total"
	AuditInlineHelp  = "Critical audit events delivered synchronously because the queue was full."
)

// HistogramBounds are the latency bucket upper bounds in seconds. Snapshots
// carry one more bucket than bounds; it is exported as +Inf.
var HistogramBounds = seconds(goSession.LatencyBounds())

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten buckets into separate instruments: 0.005 becomes "0_005".
var HistogramBoundSuffix = suffixes(HistogramBounds)

// BucketCount is the number of buckets in a latency histogram snapshot.
var BucketCount = len(HistogramBounds) + 1

// Cumulative turns per-bucket counts into running totals of length
// BucketCount. Missing buckets count as zero and extra buckets are ignored.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, BucketCount)
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

func seconds(bounds []time.Duration) []float64 {
	out := make([]float64, len(bounds))
	for i, b := range bounds {
		out[i] = b.Seconds()
	}
	return out
}

func suffixes(bounds []float64) []string {
	out := make([]string, 0, len(bounds)+1)
	for _, b := range bounds {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}
