package attendance

// Reason is the outward code of a rejected start or submit. Rejections are results, not
// errors: callers branch on them and show the matching terminal screen.
type Reason string

const (
	ReasonAlreadySubmitted Reason = "already_submitted"
	ReasonInactive         Reason = "inactive"
	ReasonNotFound         Reason = "not_found"
	ReasonExpired          Reason = "expired"
	ReasonInvalidRequest   Reason = "invalid_request"
	ReasonServerError      Reason = "server_error"

	ReasonSessionUsed    Reason = "session_used"
	ReasonSessionExpired Reason = "session_expired"
	ReasonSessionInvalid Reason = "session_invalid"
)

// outcome labels a result for metrics.
func outcome(ok bool, r Reason) string {
	if ok {
		return "ok"
	}
	return string(r)
}
