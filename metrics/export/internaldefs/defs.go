package internaldefs

import (
	wt "github.com/RokerHRO/wt"
)

// CounterDef names one controller counter for exporters.
type CounterDef struct {
	ID   wt.MetricID
	Name string
	Help string
}

// HistogramDef names one controller histogram for exporters.
type HistogramDef struct {
	ID   wt.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in metric ID order.
var CounterDefs = []CounterDef{
	{ID: wt.MetricLoginSuccess, Name: "wt_login_success_total", Help: "Successful credential validations."},
	{ID: wt.MetricLoginFailure, Name: "wt_login_failure_total", Help: "Failed credential validations."},
	{ID: wt.MetricLoginThrottled, Name: "wt_login_throttled_total", Help: "Validations rejected while a backoff delay was outstanding."},
	{ID: wt.MetricMfaRequired, Name: "wt_mfa_required_total", Help: "Logins held in the requires-mfa state."},
	{ID: wt.MetricMfaConfirmed, Name: "wt_mfa_confirmed_total", Help: "Completed second-factor confirmations."},
	{ID: wt.MetricTokenLoginAccepted, Name: "wt_token_login_accepted_total", Help: "Weak logins established from remember-me tokens."},
	{ID: wt.MetricRememberIssued, Name: "wt_remember_issued_total", Help: "Remember-me token series issued."},
	{ID: wt.MetricRememberRejected, Name: "wt_remember_rejected_total", Help: "Remember-me tokens rejected as invalid, expired, or reused."},
	{ID: wt.MetricRememberRotated, Name: "wt_remember_rotated_total", Help: "Remember-me secrets rotated on use."},
	{ID: wt.MetricRememberRevoked, Name: "wt_remember_revoked_total", Help: "Remember-me revocation operations."},
	{ID: wt.MetricEmailTokenIssued, Name: "wt_email_token_issued_total", Help: "One-shot email tokens issued."},
	{ID: wt.MetricEmailTokenValid, Name: "wt_email_token_valid_total", Help: "Email tokens consumed successfully."},
	{ID: wt.MetricEmailTokenInvalid, Name: "wt_email_token_invalid_total", Help: "Email tokens rejected as malformed or unknown."},
	{ID: wt.MetricEmailTokenExpired, Name: "wt_email_token_expired_total", Help: "Email tokens rejected as expired."},
	{ID: wt.MetricEmailTokenReused, Name: "wt_email_token_reused_total", Help: "Email tokens presented again after consumption."},
	{ID: wt.MetricLogout, Name: "wt_logout_total", Help: "Logout operations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: wt.MetricValidateLatency, Name: "wt_validate_latency_seconds", Help: "Credential validation latency histogram."},
}

// HistogramBounds are the upper bucket bounds, in seconds, matching the
// fixed buckets of the in-process histogram.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds instrument-name-safe forms of the bounds for
// exporters that cannot carry an le label.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into Prometheus-style
// cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
