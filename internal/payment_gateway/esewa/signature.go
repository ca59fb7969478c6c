package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// SignedFieldNames is sent with the checkout form so eSewa knows which fields were signed.
const SignedFieldNames = "total_amount,transaction_uuid,product_code"

// Message builds the string eSewa expects to be signed.
func Message(totalAmount, transactionUUID, productCode string) string {
	return fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s", totalAmount, transactionUUID, productCode)
}

// Sign returns the base64 HMAC-SHA256 of message under secret.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignFields signs req and returns the signature with the signed message.
func SignFields(secret string, req SignRequest) SignResponse {
	msg := Message(req.TotalAmount, req.TransactionUUID, req.ProductCode)
	return SignResponse{Signature: Sign(secret, msg), Message: msg}
}
