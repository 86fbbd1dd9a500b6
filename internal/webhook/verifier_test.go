package webhook

import (
	"errors"
	"testing"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("whsec_test")
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","paymentIntentId":"pi_1"}`)

	sig := v.Sign(body)
	if err := v.Verify(body, sig); err != nil {
		t.Fatalf("verify own signature: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	v := NewVerifier("whsec_test")
	body := []byte(`{"id":"evt_1","paymentIntentId":"pi_1"}`)
	sig := v.Sign(body)

	tampered := []byte(`{"id":"evt_1","paymentIntentId":"pi_2"}`)
	if err := v.Verify(tampered, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	sig := NewVerifier("whsec_other").Sign(body)

	if err := NewVerifier("whsec_test").Verify(body, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	v := NewVerifier("whsec_test")
	if err := v.Verify([]byte("{}"), "not-hex!"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}
