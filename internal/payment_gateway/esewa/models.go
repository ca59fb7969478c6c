package esewa

import "github.com/shopspring/decimal"

// Transaction states reported by the status API.
const (
	StatusComplete      = "COMPLETE"
	StatusPending       = "PENDING"
	StatusFullRefund    = "FULL_REFUND"
	StatusPartialRefund = "PARTIAL_REFUND"
	StatusAmbiguous     = "AMBIGUOUS"
	StatusNotFound      = "NOT_FOUND"
	StatusCanceled      = "CANCELED"
)

// StatusResponse is the body returned by the transaction status endpoint.
type StatusResponse struct {
	ProductCode     string          `json:"product_code"`
	TransactionUUID string          `json:"transaction_uuid"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"status"`
	RefID           *string         `json:"ref_id"`
}

// Completed reports whether eSewa settled the transaction.
func (s *StatusResponse) Completed() bool {
	return s != nil && s.Status == StatusComplete
}

// SignRequest holds the fields covered by the checkout form signature.
type SignRequest struct {
	TotalAmount     string `json:"total_amount"`
	TransactionUUID string `json:"transaction_uuid"`
	ProductCode     string `json:"product_code"`
}

type SignResponse struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
}
