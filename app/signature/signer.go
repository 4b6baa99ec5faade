package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
)

// Signer produces the tamper-evident token embedded in return URLs.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(paymentID int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte("gocardless_payment:" + strconv.FormatInt(paymentID, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(paymentID int64, signature string) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(s.Sign(paymentID)), []byte(signature))
}
