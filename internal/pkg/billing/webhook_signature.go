package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the parsed x-signature header.
type SignatureHeader struct {
	Timestamp string
	V1        string
}

// ParseSignatureHeader parses "ts=<unix>,v1=<hex hmac>".
func ParseSignatureHeader(header string) (SignatureHeader, error) {
	var out SignatureHeader
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			out.Timestamp = strings.TrimSpace(v)
		case "v1":
			out.V1 = strings.ToLower(strings.TrimSpace(v))
		}
	}
	if out.Timestamp == "" || out.V1 == "" {
		return out, fmt.Errorf("%w: malformed x-signature header", ErrInvalidSignature)
	}
	return out, nil
}

// SignatureManifest builds the string the gateway signs. Absent values are
// left out; alphanumeric data ids are lowercased.
func SignatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

// SignWebhook computes the v1 signature for the given values.
func SignWebhook(secret, dataID, requestID, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(SignatureManifest(dataID, requestID, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks the x-signature header of a notification. A
// tolerance of zero skips the timestamp freshness check.
func VerifyWebhookSignature(secret, signatureHeader, requestID, dataID string, now time.Time, tolerance time.Duration) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	sig, err := ParseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	expected, err := hex.DecodeString(SignWebhook(secret, dataID, requestID, sig.Timestamp))
	if err != nil {
		return err
	}
	got, err := hex.DecodeString(sig.V1)
	if err != nil || !hmac.Equal(expected, got) {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
	}

	if tolerance > 0 {
		ts, err := strconv.ParseInt(sig.Timestamp, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
		}
		signedAt := time.Unix(ts, 0)
		if ts > 1e12 {
			signedAt = time.UnixMilli(ts)
		}
		if d := now.Sub(signedAt); d > tolerance || d < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}
	return nil
}
