package models

type Verdict string

const (
	VerdictApproved    Verdict = "approved"
	VerdictRejected    Verdict = "rejected"
	VerdictNeedsReview Verdict = "needs_review"
)

type ModerationResult struct {
	Verdict    Verdict `json:"verdict"`
	ReasonCode string  `json:"reason_code"`
	Confidence float64 `json:"confidence"`
}

const (
	ReasonUnverified            = "unverified"
	ReasonModerationUnavailable = "moderation_unavailable"
)

// ListingStatus maps a verdict onto the status a new listing starts in.
func (v Verdict) ListingStatus() ListingStatus {
	switch v {
	case VerdictApproved:
		return ListingApproved
	case VerdictRejected:
		return ListingRejected
	default:
		return ListingPending
	}
}
