package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayment returns the hex HMAC-SHA256 the gateway puts on a checkout
// result: HMAC(keySecret, "<orderID>|<paymentID>").
func SignPayment(keySecret, orderID, paymentID string) string {
	return sign(keySecret, []byte(orderID+"|"+paymentID))
}

// SignWebhook returns the hex HMAC-SHA256 of a raw webhook body.
func SignWebhook(webhookSecret string, body []byte) string {
	return sign(webhookSecret, body)
}

// VerifyPaymentSignature compares in constant time. Hex case matters.
func VerifyPaymentSignature(keySecret, orderID, paymentID, signature string) bool {
	return equal(SignPayment(keySecret, orderID, paymentID), signature)
}

func VerifyWebhookSignature(webhookSecret string, body []byte, signature string) bool {
	return equal(SignWebhook(webhookSecret, body), signature)
}

func sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func equal(expected, got string) bool {
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(got))
}
