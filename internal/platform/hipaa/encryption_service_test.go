package hipaa

import (
	"encoding/hex"
	"testing"

	"github.com/rs/zerolog"
)

func validHexKey(t *testing.T) string {
	t.Helper()
	return hex.EncodeToString(generateTestKey(t))
}

func TestNewEncryptionService(t *testing.T) {
	svc, err := NewEncryptionService(validHexKey(t), zerolog.Nop())
	if err != nil || !svc.IsEnabled() {
		t.Fatalf("expected enabled service, got %v", err)
	}

	disabled, err := NewEncryptionService("", zerolog.Nop())
	if err != nil || disabled.IsEnabled() {
		t.Fatalf("expected disabled service, got %v", err)
	}

	for _, bad := range []string{"not-hex", "abcd"} {
		if _, err := NewEncryptionService(bad, zerolog.Nop()); err == nil {
			t.Errorf("expected error for key %q", bad)
		}
	}
}

func TestEncryptionService_RoundTrip(t *testing.T) {
	svc, _ := NewEncryptionService(validHexKey(t), zerolog.Nop())

	sealed, err := svc.EncryptField("555-0100")
	if err != nil || !IsSealed(sealed) {
		t.Fatalf("expected sealed value, got %q, %v", sealed, err)
	}
	opened, err := svc.DecryptField(sealed)
	if err != nil || opened != "555-0100" {
		t.Errorf("round trip mismatch: %q, %v", opened, err)
	}

	empty, _ := svc.EncryptField("")
	if empty != "" {
		t.Errorf("empty values should stay empty, got %q", empty)
	}
}

func TestEncryptionService_Disabled(t *testing.T) {
	svc, _ := NewEncryptionService("", zerolog.Nop())

	out, err := svc.EncryptField("555-0100")
	if err != nil || out != "555-0100" {
		t.Errorf("disabled service should pass through, got %q, %v", out, err)
	}

	if _, err := svc.DecryptField(sealedPrefix + "AAAA"); err == nil {
		t.Error("expected error reading sealed data without a key")
	}

	var nilSvc *EncryptionService
	if nilSvc.IsEnabled() {
		t.Error("nil service should report disabled")
	}
}

func TestSealOpenPtr(t *testing.T) {
	svc, _ := NewEncryptionService(validHexKey(t), zerolog.Nop())

	v := "jane@example.com"
	if err := SealPtr(svc, &v); err != nil || !IsSealed(v) {
		t.Fatalf("SealPtr: %q, %v", v, err)
	}
	if err := OpenPtr(svc, &v); err != nil || v != "jane@example.com" {
		t.Fatalf("OpenPtr: %q, %v", v, err)
	}

	if err := SealPtr(svc, nil); err != nil {
		t.Errorf("nil pointer should be a no-op: %v", err)
	}
	plain := "x"
	if err := SealPtr(nil, &plain); err != nil || plain != "x" {
		t.Errorf("nil cipher should be a no-op: %q, %v", plain, err)
	}
}
