package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignCheckout returns hex(HMAC-SHA256(secret, gatewayOrderID + "|" + paymentID)).
func SignCheckout(secret, gatewayOrderID, paymentID string) string {
	return sign(secret, []byte(gatewayOrderID+"|"+paymentID))
}

// SignWebhook returns hex(HMAC-SHA256(secret, rawBody)) over the exact request bytes.
func SignWebhook(secret string, rawBody []byte) string {
	return sign(secret, rawBody)
}

func sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(expected, got string) error {
	if got == "" || !hmac.Equal([]byte(expected), []byte(got)) {
		return ErrSignatureMismatch
	}
	return nil
}

func verifyCheckout(secret, gatewayOrderID, paymentID, signature string) error {
	return verify(SignCheckout(secret, gatewayOrderID, paymentID), signature)
}

func verifyWebhook(secret string, rawBody []byte, signature string) error {
	if secret == "" {
		return ErrSignatureMismatch
	}
	return verify(SignWebhook(secret, rawBody), signature)
}
