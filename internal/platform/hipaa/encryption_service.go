package hipaa

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// FieldCipher is what repositories use to seal PHI columns before writing
// and open them after reading.
type FieldCipher interface {
	EncryptField(value string) (string, error)
	DecryptField(value string) (string, error)
}

// EncryptionService is the application FieldCipher. Without a key it is a
// pass-through so development databases stay readable.
type EncryptionService struct {
	encryptor *PHIEncryptor
}

// NewEncryptionService parses a 64-character hex key. An empty key disables
// encryption with a warning; a malformed key is an error so the server
// refuses to start.
func NewEncryptionService(key string, logger zerolog.Logger) (*EncryptionService, error) {
	if key == "" {
		logger.Warn().Msg("PHI encryption disabled: HIPAA_ENCRYPTION_KEY is not set")
		return &EncryptionService{}, nil
	}

	keyBytes, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("HIPAA_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("HIPAA_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
	}

	enc, err := NewPHIEncryptor(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("create PHI encryptor: %w", err)
	}

	logger.Info().Msg("PHI field-level encryption enabled")
	return &EncryptionService{encryptor: enc}, nil
}

func (s *EncryptionService) IsEnabled() bool {
	return s != nil && s.encryptor != nil
}

// EncryptField seals value. Empty strings stay empty so optional columns
// remain distinguishable from filled ones.
func (s *EncryptionService) EncryptField(value string) (string, error) {
	if !s.IsEnabled() || value == "" {
		return value, nil
	}
	return s.encryptor.Encrypt(value)
}

// DecryptField opens a sealed value. Plaintext passes through, including
// when encryption is disabled.
func (s *EncryptionService) DecryptField(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if !s.IsEnabled() {
		return "", fmt.Errorf("phi decrypt: sealed value found but encryption is disabled")
	}
	return s.encryptor.Decrypt(value)
}

// SealPtr encrypts *p in place. Nil pointers and a nil cipher are no-ops.
func SealPtr(c FieldCipher, p *string) error {
	if c == nil || p == nil {
		return nil
	}
	out, err := c.EncryptField(*p)
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// OpenPtr decrypts *p in place. Nil pointers and a nil cipher are no-ops.
func OpenPtr(c FieldCipher, p *string) error {
	if c == nil || p == nil {
		return nil
	}
	out, err := c.DecryptField(*p)
	if err != nil {
		return err
	}
	*p = out
	return nil
}
