package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks that claimed payment confirmations actually originated from
// the gateway. Both confirmation channels go through the same instance so the
// signature logic cannot drift between them. It never mutates state.
type Verifier struct {
	keySecret     []byte
	webhookSecret []byte
}

// NewVerifier builds a verifier from the callback and webhook secrets.
func NewVerifier(keySecret, webhookSecret string) *Verifier {
	return &Verifier{
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
	}
}

// VerifyPayment checks the client-callback signature: HMAC-SHA256 over
// "<gatewayOrderID>|<paymentID>" with the key secret, hex encoded.
func (v *Verifier) VerifyPayment(gatewayOrderID, paymentID, signature string) bool {
	if v == nil || gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return verify(v.keySecret, []byte(gatewayOrderID+"|"+paymentID), signature)
}

// VerifyWebhook checks the event signature: HMAC-SHA256 over the raw request
// body with the webhook secret. The webhook secret is distinct from the key
// secret and this check is never skipped.
func (v *Verifier) VerifyWebhook(body []byte, signature string) bool {
	if v == nil || len(body) == 0 || signature == "" {
		return false
	}
	return verify(v.webhookSecret, body, signature)
}

func verify(secret, payload []byte, signature string) bool {
	if len(secret) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
