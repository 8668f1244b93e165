package internaldefs

import (
	"github.com/MrEthical07/sessionauth"
)

// Family is one exported metric name. Series with a label are split by
// Label; unlabelled families have exactly one series with an empty Value.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// Series binds a label value to the engine counter that feeds it.
type Series struct {
	Value string
	ID    sessionauth.MetricID
}

// CounterFamilies lists every exported counter, grouped by operation.
var CounterFamilies = []Family{
	{
		Name: "sessionauth_logins_total", Help: "Login attempts by outcome.", Label: "outcome",
		Series: []Series{
			{"success", sessionauth.MetricLoginSuccess},
			{"failure", sessionauth.MetricLoginFailure},
			{"throttled", sessionauth.MetricLoginThrottled},
			{"inactive", sessionauth.MetricLoginInactive},
			{"already_authenticated", sessionauth.MetricLoginAlreadyAuthenticated},
		},
	},
	{
		Name: "sessionauth_session_checks_total", Help: "Session checks by result.", Label: "result",
		Series: []Series{
			{"valid", sessionauth.MetricSessionValid},
			{"not_found", sessionauth.MetricSessionNotFound},
			{"origin_mismatch", sessionauth.MetricSessionOriginMismatch},
			{"expired", sessionauth.MetricSessionExpired},
		},
	},
	{
		Name: "sessionauth_sessions_total", Help: "Session lifecycle events.", Label: "event",
		Series: []Series{
			{"created", sessionauth.MetricSessionCreated},
			{"replaced", sessionauth.MetricSessionReplaced},
		},
	},
	{
		Name: "sessionauth_logouts_total", Help: "Logout operations.",
		Series: []Series{{"", sessionauth.MetricLogout}},
	},
	{
		Name: "sessionauth_registrations_total", Help: "Registrations by outcome.", Label: "outcome",
		Series: []Series{
			{"success", sessionauth.MetricRegisterSuccess},
			{"conflict", sessionauth.MetricRegisterConflict},
		},
	},
	{
		Name: "sessionauth_activations_total", Help: "Activation outcomes, including mails that could not be sent.", Label: "outcome",
		Series: []Series{
			{"success", sessionauth.MetricActivationSuccess},
			{"failure", sessionauth.MetricActivationFailure},
			{"mail_failed", sessionauth.MetricActivationMailFailed},
		},
	},
	{
		Name: "sessionauth_password_changes_total", Help: "Password changes by outcome.", Label: "outcome",
		Series: []Series{
			{"success", sessionauth.MetricPasswordChangeSuccess},
			{"failure", sessionauth.MetricPasswordChangeFailure},
		},
	},
	{
		Name: "sessionauth_validation_rejected_total", Help: "Requests rejected by input validation.",
		Series: []Series{{"", sessionauth.MetricValidationRejected}},
	},
	{
		Name: "sessionauth_attempts_purged_total", Help: "Expired attempt records purged.",
		Series: []Series{{"", sessionauth.MetricAttemptsPurged}},
	},
	{
		Name: "sessionauth_audit_write_failures_total", Help: "Activity records the primary sink refused.",
		Series: []Series{{"", sessionauth.MetricAuditWriteFailed}},
	},
	{
		Name: "sessionauth_storage_operations_total", Help: "Store call failures and read retries.", Label: "kind",
		Series: []Series{
			{"error", sessionauth.MetricStorageError},
			{"retry", sessionauth.MetricStorageRetry},
		},
	},
}

// Counters fed by the audit mirror rather than the engine's metric table.
const (
	AuditDroppedName = "sessionauth_audit_mirror_dropped_total"
	AuditFailedName  = "sessionauth_audit_mirror_failed_total"
)

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessionauth.MetricValidateLatency, Name: "sessionauth_session_check_duration_seconds", Help: "Session check latency."},
}

// HistogramBounds are the upper bounds of the engine's fixed buckets, in
// seconds.
var HistogramBounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// CumulativeBuckets turns per-bucket counts into running totals. Missing
// buckets count as zero.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
