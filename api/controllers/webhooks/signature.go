package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

const (
	signatureHeader = "X-Webhook-Signature"
	signaturePrefix = "sha256="
	maxPayloadBytes = 1 << 20
)

// readSigned reads the request body and checks its HMAC-SHA256 signature.
// An empty secret disables verification.
func readSigned(r *http.Request, secret string) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}
	if secret == "" {
		return payload, nil
	}

	header := strings.TrimSpace(r.Header.Get(signatureHeader))
	if header == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook signature missing")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook signature")
	}
	if !hmac.Equal(got, Sign(payload, secret)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook signature mismatch")
	}
	return payload, nil
}

// Sign returns the raw HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
