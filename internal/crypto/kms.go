package crypto

import (
	"context"
	"encoding/base64"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"

	"github.com/GregMSThompson/mcp-proxy/internal/errs"
)

// kmsClient is satisfied by *kms.KeyManagementClient.
type kmsClient interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
}

// PayloadCipher seals serialized session contexts with a Cloud KMS key.
// Ciphertext is base64 text so it can be stored in string-valued backends.
type PayloadCipher struct {
	client  kmsClient
	keyName string
}

func NewPayloadCipher(client kmsClient, keyName string) *PayloadCipher {
	return &PayloadCipher{client: client, keyName: keyName}
}

func (k *PayloadCipher) Seal(ctx context.Context, plaintext []byte) (string, error) {
	resp, err := k.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      k.keyName,
		Plaintext: plaintext,
	})
	if err != nil {
		return "", errs.NewEncryptionError("failed to encrypt session payload", err)
	}
	return base64.StdEncoding.EncodeToString(resp.Ciphertext), nil
}

func (k *PayloadCipher) Open(ctx context.Context, ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, errs.NewEncryptionError("session payload is not valid base64", err)
	}
	resp, err := k.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       k.keyName,
		Ciphertext: raw,
	})
	if err != nil {
		return nil, errs.NewEncryptionError("failed to decrypt session payload", err)
	}
	return resp.Plaintext, nil
}
