package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Render signs webhooks with the svix scheme: an HMAC-SHA256 over
// "{id}.{timestamp}.{body}" keyed by the base64-decoded shared secret. The
// signature header may carry several space-separated "v1,<base64>" entries;
// any match passes.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"

	secretPrefix     = "whsec_"
	signatureVersion = "v1"
)

var (
	ErrInvalidSecret    = errors.New("webhook: invalid signing secret")
	ErrInvalidTimestamp = errors.New("webhook: invalid timestamp header")
	ErrExpiredTimestamp = errors.New("webhook: timestamp outside tolerance")
	ErrInvalidSignature = errors.New("webhook: signature mismatch")
)

// Verifier checks webhook authenticity against a pre-shared secret.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithTolerance sets the allowed clock skew between the signed timestamp and
// now. A non-positive value disables the check.
func WithTolerance(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.tolerance = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func NewVerifier(secret string, opts ...VerifierOption) (*Verifier, error) {
	trimmed := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil || len(key) == 0 {
		return nil, ErrInvalidSecret
	}

	v := &Verifier{
		key:       key,
		tolerance: 5 * time.Minute,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the signature over the exact raw body bytes and the id and
// timestamp headers. Missing headers are treated as empty strings, which
// deterministically fail the check. It must run before the body is parsed.
func (v *Verifier) Verify(body []byte, headers http.Header) error {
	id := headers.Get(HeaderID)
	timestamp := headers.Get(HeaderTimestamp)
	signatures := headers.Get(HeaderSignature)

	if v.tolerance > 0 {
		seconds, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return ErrInvalidTimestamp
		}
		skew := v.now().Sub(time.Unix(seconds, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.tolerance {
			return ErrExpiredTimestamp
		}
	}

	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(signatures) {
		version, signature, found := strings.Cut(entry, ",")
		if !found || version != signatureVersion {
			continue
		}
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign produces the signature header value for the given id, timestamp, and
// body. It exists for tests and for replaying captured deliveries.
func (v *Verifier) Sign(id string, timestamp time.Time, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(strconv.FormatInt(timestamp.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return signatureVersion + "," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
