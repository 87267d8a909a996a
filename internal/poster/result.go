package poster

import (
	"fmt"
	"strings"
)

// FailReason says why a posting cycle ended without a delivery.
type FailReason string

const (
	// ReasonRateLimitExhausted: every retry round ended rate-limited.
	ReasonRateLimitExhausted FailReason = "rate_limit_exhausted"
	// ReasonAllChannelsFailed: every channel failed without a rate limit,
	// so retrying would not help.
	ReasonAllChannelsFailed FailReason = "all_channels_failed"
)

// Receipt describes a successful delivery.
type Receipt struct {
	Channel string
	PostID  string
	Message string
}

// CycleError is the terminal failure of one posting cycle. It is reported
// to the caller and logged; it is never fatal to the process.
type CycleError struct {
	Reason        FailReason
	ChannelsTried []string
	Rounds        int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("posting failed (%s) after %d round(s), channels tried: %s",
		e.Reason, e.Rounds, strings.Join(e.ChannelsTried, ", "))
}

// Remediation returns operator guidance for the failure class.
func (e *CycleError) Remediation() string {
	switch e.Reason {
	case ReasonRateLimitExhausted:
		return "rate limits exhausted: consider raising the posting interval, " +
			"or check the rate-limit budget of your API access tier"
	case ReasonAllChannelsFailed:
		return "all delivery channels rejected the post: verify that write permission " +
			"is enabled for the app and that the access tier allows posting"
	default:
		return ""
	}
}
