/**
 * @description
 * Classification of gift-code API responses. The upstream discriminates
 * outcomes through (msg, err_code) pairs on an otherwise uniform JSON shape;
 * this file maps the observed pairs onto the service's closed outcome set.
 *
 * @notes
 * - The pair set is enumerated from observed responses. A semantically
 *   equivalent but unseen pair will classify as OutcomeUnknown rather than
 *   a captcha error; the raw message is preserved so new pairs surface in
 *   logs instead of being silently coerced.
 */
package wosclient

import (
	"strings"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
)

// captchaValidityErrors are the submission responses that mean the solved
// text was wrong, stale, or requested too aggressively. All are recoverable
// within the captcha cycle's iteration budget.
var captchaValidityErrors = map[apiMessage]bool{
	{"CAPTCHA CHECK ERROR", 40103}:        true,
	{"CAPTCHA GET TOO FREQUENT", 40100}:   true,
	{"CAPTCHA CHECK TOO FREQUENT", 40101}: true,
	{"CAPTCHA EXPIRED", 40102}:            true,
}

type apiMessage struct {
	Msg     string
	ErrCode int
}

// Classification is the decoded meaning of one submission response.
type Classification struct {
	Outcome domain.Outcome
	// RawMessage carries the upstream msg verbatim for unknown responses.
	RawMessage string
}

// ClassifySubmission maps an upstream (msg, err_code) pair onto an outcome.
// The msg is compared after trimming the trailing period the API sometimes
// appends.
func ClassifySubmission(msg string, errCode int) Classification {
	trimmed := strings.TrimRight(strings.TrimSpace(msg), ".")

	if captchaValidityErrors[apiMessage{trimmed, errCode}] {
		return Classification{Outcome: domain.OutcomeCaptchaInvalid, RawMessage: trimmed}
	}

	switch {
	case trimmed == "SUCCESS":
		return Classification{Outcome: domain.OutcomeSuccess}
	case trimmed == "RECEIVED" && errCode == 40008:
		return Classification{Outcome: domain.OutcomeAlreadyRedeemed}
	case trimmed == "SAME TYPE EXCHANGE" && errCode == 40011:
		return Classification{Outcome: domain.OutcomeSameTypeClaimed}
	case trimmed == "TIME ERROR" && errCode == 40007:
		return Classification{Outcome: domain.OutcomeCodeExpired}
	case trimmed == "CDK NOT FOUND" && errCode == 40014:
		return Classification{Outcome: domain.OutcomeCodeNotFound}
	case trimmed == "USAGE LIMIT" && errCode == 40009:
		return Classification{Outcome: domain.OutcomeUsageLimit}
	case strings.EqualFold(trimmed, "not login"):
		return Classification{Outcome: domain.OutcomeLoginExpired, RawMessage: trimmed}
	default:
		return Classification{Outcome: domain.OutcomeUnknown, RawMessage: trimmed}
	}
}

// looksLikeHTML reports whether a response body is an HTML error page rather
// than JSON. The upstream serves one when the caller is throttled at the
// transport level, without a JSON error or a distinctive status code.
func looksLikeHTML(body []byte) bool {
	s := strings.TrimSpace(string(body))
	return strings.HasPrefix(s, "<!DOCTYPE") || strings.HasPrefix(s, "<html")
}
