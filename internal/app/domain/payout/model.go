// Package payout defines the request and result shapes for payout settlement.
package payout

// Request asks to settle amount from one account's pending earnings.
type Request struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}

// Receipt records a completed settlement and the resulting balances.
type Receipt struct {
	UserID          string  `json:"user_id"`
	Username        string  `json:"username"`
	Amount          float64 `json:"amount"`
	PendingEarnings float64 `json:"pending_earnings"`
	PaidEarnings    float64 `json:"paid_earnings"`
}

// Failure records one request that could not be settled.
type Failure struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

// BulkResult summarises a bulk settlement run. Requests are independent:
// failures do not roll back the receipts that preceded them.
type BulkResult struct {
	Successful     int       `json:"successful"`
	Failed         int       `json:"failed"`
	TotalProcessed int       `json:"total_processed"`
	Results        []Receipt `json:"results"`
	Failures       []Failure `json:"failures"`
}
