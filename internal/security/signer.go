package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
)

var ErrNoSigningSecret = errors.New("signing secret is not configured")

// Signer computes the keyed authentication code carried on every outbound
// registrar call: HMAC-SHA256 over "<millisecond timestamp>.<body>" with a
// shared secret. Deterministic for identical inputs.
type Signer struct {
	secret []byte
}

// NewSigner fails loudly on an empty secret so a misconfigured deployment
// cannot silently send unsigned requests.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSigningSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) Sign(timestampMillis int64, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatInt(timestampMillis, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature the way the receiving side would.
func (s *Signer) Verify(timestampMillis int64, body []byte, signature string) bool {
	return hmac.Equal([]byte(s.Sign(timestampMillis, body)), []byte(signature))
}
