package security

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPEM_Inline(t *testing.T) {
	pemBytes, err := LoadPEM("  " + testPublicKeyPEM + "\n")
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if !strings.HasPrefix(string(pemBytes), "-----BEGIN PUBLIC KEY-----") {
		t.Error("LoadPEM should return trimmed inline PEM")
	}
}

func TestLoadPEM_LiteralNewlines(t *testing.T) {
	oneLine := strings.ReplaceAll(testPublicKeyPEM, "\n", `\n`)
	pub, err := ParsePublicKey(oneLine)
	if err != nil {
		t.Fatalf("ParsePublicKey single-line PEM: %v", err)
	}
	if _, ok := pub.(*rsa.PublicKey); !ok {
		t.Errorf("key type = %T, want *rsa.PublicKey", pub)
	}
}

func TestLoadPEM_FilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.pub")
	if err := os.WriteFile(path, []byte(testPublicKeyPEM), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pub, err := ParsePublicKey(path)
	if err != nil {
		t.Fatalf("ParsePublicKey(file): %v", err)
	}
	if signingMethodFor(pub).Alg() != "RS256" {
		t.Errorf("alg = %q, want RS256", signingMethodFor(pub).Alg())
	}
}

func TestLoadPEM_Empty(t *testing.T) {
	for _, s := range []string{"", "   \n\t"} {
		if _, err := LoadPEM(s); err != ErrInvalidKey {
			t.Errorf("LoadPEM(%q): want ErrInvalidKey, got %v", s, err)
		}
	}
}

func TestParsePrivateKey_RSA(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if _, ok := signer.Public().(*rsa.PublicKey); !ok {
		t.Errorf("public type = %T, want *rsa.PublicKey", signer.Public())
	}
}

func TestParseKeys_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		pem  string
	}{
		{"not PEM", "not a pem format"},
		{"missing END marker", "-----BEGIN PUBLIC KEY-----\ncontent"},
		{"empty block", "-----BEGIN PUBLIC KEY-----\n-----END PUBLIC KEY-----"},
		{"bad certificate", "-----BEGIN CERTIFICATE-----\nMIIC\n-----END CERTIFICATE-----"},
		{"missing file", "/nonexistent/auth.pub"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePublicKey(tc.pem); err == nil {
				t.Error("ParsePublicKey: want error, got nil")
			}
			if _, err := ParsePrivateKey(tc.pem); err == nil {
				t.Error("ParsePrivateKey: want error, got nil")
			}
		})
	}
}

func TestParseKeys_WrongType(t *testing.T) {
	if _, err := ParsePrivateKey(testPublicKeyPEM); err != ErrInvalidKey {
		t.Errorf("ParsePrivateKey(public): want ErrInvalidKey, got %v", err)
	}
	if _, err := ParsePublicKey(testPrivateKeyPEM); err != ErrInvalidKey {
		t.Errorf("ParsePublicKey(private): want ErrInvalidKey, got %v", err)
	}
}

func TestSigningMethodFor_Unsupported(t *testing.T) {
	if signingMethodFor("not a key") != nil {
		t.Error("unsupported key should have no signing method")
	}
}
