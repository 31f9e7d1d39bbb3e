package webhook

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // X-Hub-Signature is defined as HMAC-SHA1
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/garyellow/messenger-bot-go/internal/errors"
)

// Signature headers sent by the Messenger platform.
const (
	HeaderSignature256 = "X-Hub-Signature-256"
	HeaderSignature    = "X-Hub-Signature"
)

// VerifySignature checks body against the signature headers using the app
// secret. The SHA-256 header is preferred; the SHA-1 header is accepted when
// it is the only one present.
func VerifySignature(appSecret string, body []byte, sig256, sig1 string) error {
	switch {
	case sig256 != "":
		return compare(sha256.New, "sha256", appSecret, body, sig256)
	case sig1 != "":
		return compare(sha1.New, "sha1", appSecret, body, sig1)
	default:
		return fmt.Errorf("%w: no signature header", errors.ErrInvalidSignature)
	}
}

func compare(newHash func() hash.Hash, algo, secret string, body []byte, header string) error {
	method, digest, ok := strings.Cut(header, "=")
	if !ok || method != algo {
		return fmt.Errorf("%w: malformed %s signature", errors.ErrInvalidSignature, algo)
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", errors.ErrInvalidSignature)
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fmt.Errorf("%w: %s digest mismatch", errors.ErrInvalidSignature, algo)
	}
	return nil
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
