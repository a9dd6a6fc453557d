package webhook

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestVerifier_Roundtrip(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{"type":"payment.updated"}`)

	sig := v.Sign(body)
	if err := v.Verify(body, sig); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifier_RejectsTamperedBody(t *testing.T) {
	v := NewVerifier("test-secret")
	sig := v.Sign([]byte(`{"amount":100}`))

	err := v.Verify([]byte(`{"amount":999}`), sig)
	if !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"type":"payment.updated"}`)
	sig := NewVerifier("other-secret").Sign(body)

	err := NewVerifier("test-secret").Verify(body, sig)
	if !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifier_RejectsMalformedSignature(t *testing.T) {
	v := NewVerifier("test-secret")
	body := []byte(`{}`)

	for _, sig := range []string{"", "not-hex", "zz00"} {
		if err := v.Verify(body, sig); !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("signature %q: expected ErrSignatureInvalid, got %v", sig, err)
		}
	}
}
