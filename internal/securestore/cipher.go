package securestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

const secretLength = 32

var ErrEmptySecret = errors.New("empty cipher secret")

// Cipher obfuscates stored records with a repeating per-installation secret.
// It keeps casual readers of the host storage out, nothing more.
type Cipher struct {
	secret []byte
}

func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Cipher{secret: []byte(secret)}, nil
}

// LoadOrCreateCipher reads the installation secret from the backend, creating
// and persisting a fresh one on first use.
func LoadOrCreateCipher(ctx context.Context, backend Backend) (*Cipher, error) {
	secret, found, err := backend.Get(ctx, EncryptionKeyName)
	if err != nil {
		return nil, fmt.Errorf("read encryption key: %w", err)
	}
	if found && secret != "" {
		return NewCipher(secret)
	}

	secret, err = pkg.GenerateRandomAlphanumeric(secretLength)
	if err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	if err := backend.Set(ctx, EncryptionKeyName, secret); err != nil {
		return nil, fmt.Errorf("persist encryption key: %w", err)
	}
	log.Infoln("store: new installation encryption key created")

	return NewCipher(secret)
}

func (c *Cipher) Encrypt(plain []byte) string {
	return base64.StdEncoding.EncodeToString(c.xor(plain))
}

func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %s", ErrCorrupted, err)
	}
	return c.xor(raw), nil
}

func (c *Cipher) xor(in []byte) []byte {
	out := make([]byte, len(in))
	for i := range in {
		out[i] = in[i] ^ c.secret[i%len(c.secret)]
	}
	return out
}
