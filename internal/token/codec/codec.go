// Package codec encodes payment tokens into signed NAMQR payloads and verifies them back.
//
// Wire form: namqr://{base64url(json)}.{hex(hmac_sha256(base64url))[:SignatureLength]}
// The signature covers the exact base64url text; Decode verifies that text before parsing it.
package codec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/hkdf"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
)

const (
	// Prefix is the fixed scheme every payload starts with.
	Prefix = "namqr://"
	// SignatureLength is the number of hex characters of the HMAC kept in the payload.
	// Changing it invalidates every outstanding token.
	SignatureLength = 16
	// Version is the payload schema version written by Encode.
	Version = 1

	hkdfInfo = "namqr token signing v1"
)

var (
	ErrInvalidPrefix    = errors.New("codec: invalid prefix")
	ErrInvalidFormat    = errors.New("codec: invalid format")
	ErrInvalidSignature = errors.New("codec: invalid signature")
	// ErrExpired is returned together with the decoded token; the store's expiry is authoritative.
	ErrExpired = errors.New("codec: token expired")
	ErrNoKey   = errors.New("codec: no signing key")
)

// Keyring holds the derived HMAC keys. The first key signs; every key verifies.
type Keyring struct {
	keyID string
	keys  [][]byte
}

// NewKeyring derives HMAC keys from the current secret and any retired secrets still accepted for verification.
func NewKeyring(keyID, current string, previous ...string) (*Keyring, error) {
	if current == "" {
		return nil, ErrNoKey
	}
	kr := &Keyring{keyID: keyID}
	for _, s := range append([]string{current}, previous...) {
		if s == "" {
			continue
		}
		k, err := deriveKey(s)
		if err != nil {
			return nil, err
		}
		kr.keys = append(kr.keys, k)
	}
	return kr, nil
}

// KeyID returns the label of the signing key.
func (k *Keyring) KeyID() string { return k.keyID }

func deriveKey(secret string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("codec: derive key: %w", err)
	}
	return key, nil
}

// payload is the canonical JSON shape. Field order is fixed by the struct.
type payload struct {
	V   int                 `json:"v"`
	TID string              `json:"tid"`
	PID string              `json:"pid"`
	Amt decimal.NullDecimal `json:"amt"`
	Cur string              `json:"cur"`
	Ref string              `json:"ref,omitempty"`
	Iat int64               `json:"iat"`
	Exp int64               `json:"exp"`
	Off bool                `json:"off"`
}

// Codec signs and verifies payloads with a Keyring.
type Codec struct {
	keys *Keyring
	now  func() time.Time
}

// New returns a Codec using keys. Expiry is checked against the wall clock.
func New(keys *Keyring) *Codec {
	return &Codec{keys: keys, now: time.Now}
}

// WithClock returns a copy of c that reads the current time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Encode serializes t and signs it with the current key.
func (c *Codec) Encode(t *domain.Token) (string, error) {
	if c.keys == nil || len(c.keys.keys) == 0 {
		return "", ErrNoKey
	}
	if t == nil || t.ID == "" {
		return "", errors.New("codec: token id is required")
	}
	raw, err := json.Marshal(payload{
		V:   Version,
		TID: t.ID,
		PID: t.PayeeID,
		Amt: t.Amount,
		Cur: t.Currency,
		Ref: t.Reference,
		Iat: t.IssuedAt.Unix(),
		Exp: t.ExpiresAt.Unix(),
		Off: t.OfflineCapable,
	})
	if err != nil {
		return "", fmt.Errorf("codec: marshal: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return Prefix + encoded + "." + sign(c.keys.keys[0], encoded), nil
}

// Decode verifies s and returns the token it carries.
// When the embedded expiry has passed it returns the token together with ErrExpired.
func (c *Codec) Decode(s string) (*domain.Token, error) {
	if !strings.HasPrefix(s, Prefix) {
		return nil, ErrInvalidPrefix
	}
	rest := s[len(Prefix):]
	i := strings.LastIndexByte(rest, '.')
	if i <= 0 || i == len(rest)-1 {
		return nil, ErrInvalidFormat
	}
	encoded, sig := rest[:i], rest[i+1:]
	if !c.verify(encoded, sig) {
		return nil, ErrInvalidSignature
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrInvalidFormat
	}
	if p.V != Version || p.TID == "" {
		return nil, ErrInvalidFormat
	}
	t := &domain.Token{
		ID:             p.TID,
		PayeeID:        p.PID,
		Amount:         p.Amt,
		Currency:       p.Cur,
		Reference:      p.Ref,
		IssuedAt:       time.Unix(p.Iat, 0).UTC(),
		ExpiresAt:      time.Unix(p.Exp, 0).UTC(),
		OfflineCapable: p.Off,
	}
	if t.ExpiredAt(c.now()) {
		return t, ErrExpired
	}
	return t, nil
}

func (c *Codec) verify(encoded, sig string) bool {
	if c.keys == nil || len(sig) != SignatureLength {
		return false
	}
	ok := false
	for _, k := range c.keys.keys {
		if hmac.Equal([]byte(sign(k, encoded)), []byte(sig)) {
			ok = true
		}
	}
	return ok
}

func sign(key []byte, encoded string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))[:SignatureLength]
}
