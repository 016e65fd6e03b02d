package models

// Endpoint names one of the backend operations reachable by the API client.
type Endpoint string

const (
	EndpointGetUserData     Endpoint = "get_user_data"
	EndpointClaimDailyBonus Endpoint = "claim_daily_bonus"
	EndpointGetAdForView    Endpoint = "get_ad_for_view"
	EndpointRecordAdView    Endpoint = "record_ad_view"
)

// Endpoints lists every endpoint of the backend contract.
var Endpoints = []Endpoint{
	EndpointGetUserData,
	EndpointClaimDailyBonus,
	EndpointGetAdForView,
	EndpointRecordAdView,
}

// Path returns the URL path the endpoint is served on.
func (e Endpoint) Path() string {
	return "/" + string(e)
}

// GenericFailure is used when a failed response carries no reason at all.
const GenericFailure = "request failed"

// Result is the uniform envelope every API client call resolves to, whatever
// happened on the wire. A failed Result always carries a human-readable Message;
// a successful one carries the endpoint specific payload (User, Ad).
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	// Detail is the reason field some backends use instead of Message.
	Detail string        `json:"detail,omitempty"`
	User   *UserData     `json:"user,omitempty"`
	Ad     *AdDescriptor `json:"ad,omitempty"`
}

// Failure builds a failed Result with the given reason.
func Failure(message string) Result {
	r := Result{Success: false, Message: message}
	r.Normalize()
	return r
}

// Normalize enforces the envelope invariant: a failed Result gets its Message
// from Detail, or GenericFailure when neither is set.
func (r *Result) Normalize() {
	if r.Success || r.Message != "" {
		return
	}
	if r.Detail != "" {
		r.Message = r.Detail
		return
	}
	r.Message = GenericFailure
}

// UserRequest is the body of get_user_data, claim_daily_bonus and get_ad_for_view.
type UserRequest struct {
	UserID int64 `json:"user_id"`
}

// RecordViewRequest is the body of record_ad_view.
type RecordViewRequest struct {
	UserID int64 `json:"user_id"`
	AdID   int64 `json:"ad_id"`
	Reward int64 `json:"reward"`
}
