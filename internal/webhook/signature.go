// Package webhook holds the partner webhook wire format: signature checks,
// the typed event model and payload validation. It has no I/O of its own;
// the HTTP handler and the ingress service drive it.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Header names used by the partner.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

const signatureScheme = "v1"

var (
	// ErrMalformedHeaders means the signature headers are missing or cannot
	// be parsed. Answered with 400.
	ErrMalformedHeaders = errors.New("malformed signature headers")
	// ErrBadSignature means the HMAC does not match. Answered with 401.
	ErrBadSignature = errors.New("invalid signature")
	// ErrStaleTimestamp means the timestamp is outside the tolerance. Answered with 401.
	ErrStaleTimestamp = errors.New("stale signature timestamp")
)

// Verifier checks HMAC-SHA256 signatures over timestamp + "." + body.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier returns a Verifier. tolerance bounds |now - timestamp|.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// ParseHeaders validates the header syntax and returns every v1 signature
// plus the timestamp. Several signatures may be sent comma-separated while
// the shared secret is being rotated.
func ParseHeaders(sigHeader, tsHeader string) ([][]byte, int64, error) {
	tsHeader = strings.TrimSpace(tsHeader)
	sigHeader = strings.TrimSpace(sigHeader)
	if tsHeader == "" || sigHeader == "" {
		return nil, 0, ErrMalformedHeaders
	}
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil || ts <= 0 {
		return nil, 0, ErrMalformedHeaders
	}

	var sigs [][]byte
	for _, part := range strings.Split(sigHeader, ",") {
		scheme, hexSig, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || scheme != signatureScheme {
			continue
		}
		raw, err := hex.DecodeString(hexSig)
		if err != nil || len(raw) != sha256.Size {
			return nil, 0, ErrMalformedHeaders
		}
		sigs = append(sigs, raw)
	}
	if len(sigs) == 0 {
		return nil, 0, ErrMalformedHeaders
	}
	return sigs, ts, nil
}

// Verify authenticates body. It returns ErrMalformedHeaders, ErrStaleTimestamp
// or ErrBadSignature on failure.
func (v *Verifier) Verify(sigHeader, tsHeader string, body []byte) error {
	sigs, ts, err := ParseHeaders(sigHeader, tsHeader)
	if err != nil {
		return err
	}

	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return ErrStaleTimestamp
	}

	want := mac(v.secret, strconv.FormatInt(ts, 10), body)
	for _, s := range sigs {
		if hmac.Equal(s, want) {
			return nil
		}
	}
	return ErrBadSignature
}

// Sign produces the X-Signature value for body at ts.
func Sign(secret string, ts int64, body []byte) string {
	return signatureScheme + "=" + hex.EncodeToString(mac([]byte(secret), strconv.FormatInt(ts, 10), body))
}

func mac(secret []byte, ts string, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(ts))
	h.Write([]byte("."))
	h.Write(body)
	return h.Sum(nil)
}
