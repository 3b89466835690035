package domain

// Outcome is the closed classification of a redemption attempt against the
// game API. Every submission response, transport failure, and budget
// exhaustion maps onto exactly one of these.
type Outcome string

const (
	// Terminal, non-error.
	OutcomeSuccess         Outcome = "success"
	OutcomeAlreadyRedeemed Outcome = "already_redeemed"
	OutcomeSameTypeClaimed Outcome = "same_type_claimed"
	OutcomeCodeExpired     Outcome = "code_expired"
	OutcomeCodeNotFound    Outcome = "code_not_found"
	OutcomeUsageLimit      Outcome = "usage_limit"

	// Recoverable within a driver run.
	OutcomeCaptchaInvalid Outcome = "captcha_invalid"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeLoginExpired   Outcome = "login_expired"
	OutcomeTransient      Outcome = "transient_error"

	// Terminal failures.
	OutcomeCaptchaTooFrequent Outcome = "captcha_too_frequent"
	OutcomeMaxCaptchaAttempts Outcome = "max_captcha_attempts"
	OutcomeLoginFailed        Outcome = "login_failed"
	OutcomeSolverUnavailable  Outcome = "solver_unavailable"
	OutcomeUnknown            Outcome = "unknown_response"
)

// Terminal reports whether no further attempts should be made for the
// (alliance, code, fid) triple that produced this outcome.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeSuccess, OutcomeAlreadyRedeemed, OutcomeSameTypeClaimed,
		OutcomeCodeExpired, OutcomeCodeNotFound, OutcomeUsageLimit,
		OutcomeCaptchaTooFrequent, OutcomeMaxCaptchaAttempts,
		OutcomeLoginFailed, OutcomeSolverUnavailable, OutcomeUnknown:
		return true
	}
	return false
}

// NoLongerAvailable reports whether the outcome means the code itself is dead
// (expired, withdrawn, or fully used). These are not operator-facing errors;
// they are recorded as already_redeemed so the member is never retried.
func (o Outcome) NoLongerAvailable() bool {
	switch o {
	case OutcomeCodeExpired, OutcomeCodeNotFound, OutcomeUsageLimit:
		return true
	}
	return false
}

// RecordStatus maps the outcome onto the durable record status written by
// the driver.
func (o Outcome) RecordStatus() string {
	switch {
	case o == OutcomeSuccess || o == OutcomeSameTypeClaimed:
		return RecordStatusSuccess
	case o == OutcomeAlreadyRedeemed || o.NoLongerAvailable():
		return RecordStatusAlreadyRedeemed
	default:
		return RecordStatusFailed
	}
}
