package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPayment(t *testing.T) {
	t.Parallel()

	v := NewVerifier("key-secret", "webhook-secret")
	sig := sign("key-secret", []byte("order_abc|pay_xyz"))

	if !v.VerifyPayment("order_abc", "pay_xyz", sig) {
		t.Fatalf("expected valid signature to verify")
	}
	if v.VerifyPayment("order_abc", "pay_xyz", sig+"0") {
		t.Fatalf("tampered signature must not verify")
	}
	if v.VerifyPayment("order_other", "pay_xyz", sig) {
		t.Fatalf("signature over different ids must not verify")
	}
	if v.VerifyPayment("", "pay_xyz", sig) {
		t.Fatalf("missing order id must not verify")
	}
}

func TestVerifyPaymentUsesKeySecretNotWebhookSecret(t *testing.T) {
	t.Parallel()

	v := NewVerifier("key-secret", "webhook-secret")
	wrongSecretSig := sign("webhook-secret", []byte("order_abc|pay_xyz"))
	if v.VerifyPayment("order_abc", "pay_xyz", wrongSecretSig) {
		t.Fatalf("callback signature must use the key secret")
	}
}

func TestVerifyWebhook(t *testing.T) {
	t.Parallel()

	v := NewVerifier("key-secret", "webhook-secret")
	body := []byte(`{"event":"payment.captured"}`)
	sig := sign("webhook-secret", body)

	if !v.VerifyWebhook(body, sig) {
		t.Fatalf("expected valid webhook signature to verify")
	}
	if v.VerifyWebhook(append(body, ' '), sig) {
		t.Fatalf("modified body must not verify")
	}
	if v.VerifyWebhook(body, "") {
		t.Fatalf("empty signature must not verify")
	}
}

func TestVerifierEmptySecrets(t *testing.T) {
	t.Parallel()

	v := NewVerifier("", "")
	if v.VerifyPayment("order_abc", "pay_xyz", sign("", []byte("order_abc|pay_xyz"))) {
		t.Fatalf("verifier without secrets must reject everything")
	}
}
