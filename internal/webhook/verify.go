package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadSignature covers every verification failure. The connector only
// needs to know the request was rejected, not which check tripped.
var ErrBadSignature = errors.New("webhook: bad signature")

// VerifySignature checks the x-dt-signature token against the data
// connector secret. The token must be a valid HS256 JWT whose
// checksum_sha256 claim equals the sha256 hex digest of the raw body.
func VerifySignature(secret []byte, signature string, body []byte) error {
	if len(secret) == 0 {
		return errors.New("webhook: empty secret")
	}
	if signature == "" {
		return fmt.Errorf("%w: missing token", ErrBadSignature)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signature, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: invalid token", ErrBadSignature)
	}

	claimed, ok := claims["checksum_sha256"].(string)
	if !ok || claimed == "" {
		return fmt.Errorf("%w: missing checksum claim", ErrBadSignature)
	}
	digest := sha256.Sum256(body)
	if hex.EncodeToString(digest[:]) != claimed {
		return fmt.Errorf("%w: checksum mismatch", ErrBadSignature)
	}
	return nil
}
