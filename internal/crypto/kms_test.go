package crypto

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"

	"github.com/GregMSThompson/mcp-proxy/internal/errs"
)

// xorKMS stands in for Cloud KMS with a reversible transform.
type xorKMS struct {
	keyName string
	fail    bool
}

func (x *xorKMS) Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error) {
	if x.fail {
		return nil, errors.New("permission denied")
	}
	x.keyName = req.Name
	return &kmspb.EncryptResponse{Ciphertext: xor(req.Plaintext)}, nil
}

func (x *xorKMS) Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error) {
	return &kmspb.DecryptResponse{Plaintext: xor(req.Ciphertext)}, nil
}

func xor(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ 0x5a
	}
	return out
}

func TestPayloadCipherSealOpen(t *testing.T) {
	client := &xorKMS{}
	c := NewPayloadCipher(client, "projects/p/locations/l/keyRings/r/cryptoKeys/sessions")

	sealed, err := c.Seal(context.Background(), []byte(`{"session_id":"abc"}`))
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if sealed == `{"session_id":"abc"}` {
		t.Fatalf("payload was not transformed")
	}
	if client.keyName != "projects/p/locations/l/keyRings/r/cryptoKeys/sessions" {
		t.Fatalf("key name not forwarded: %q", client.keyName)
	}

	opened, err := c.Open(context.Background(), sealed)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if string(opened) != `{"session_id":"abc"}` {
		t.Fatalf("round trip mismatch: %q", opened)
	}
}

func TestPayloadCipherErrors(t *testing.T) {
	c := NewPayloadCipher(&xorKMS{fail: true}, "key")

	var encErr *errs.EncryptionError
	if _, err := c.Seal(context.Background(), []byte("x")); !errors.As(err, &encErr) {
		t.Fatalf("expected EncryptionError, got %v", err)
	}
	if _, err := c.Open(context.Background(), "not base64!"); !errors.As(err, &encErr) {
		t.Fatalf("expected EncryptionError for bad base64, got %v", err)
	}
}
