package billing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const referenceVersion = "v1"

// Reference correlates a gateway charge with the user and plan it was
// created for.
type Reference struct {
	UserID  string
	PlanKey string
}

type referencePayload struct {
	U string `json:"u"`
	P string `json:"p"`
	N string `json:"n"`
}

// ReferenceCodec signs and verifies the external reference attached to
// gateway charges. Signed references look like v1.<payload>.<mac>.
type ReferenceCodec struct {
	secret []byte
}

func NewReferenceCodec(secret string) *ReferenceCodec {
	return &ReferenceCodec{secret: []byte(strings.TrimSpace(secret))}
}

// Encode returns a signed reference for ref.
func (c *ReferenceCodec) Encode(ref Reference) (string, error) {
	if len(c.secret) == 0 {
		return "", fmt.Errorf("%w: REFERENCE_SECRET is empty", ErrNotConfigured)
	}
	plan, ok := LookupPlan(ref.PlanKey)
	if !ok || strings.TrimSpace(ref.UserID) == "" {
		return "", ErrInvalidReference
	}

	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	raw, err := json.Marshal(referencePayload{
		U: strings.TrimSpace(ref.UserID),
		P: plan.Key,
		N: base64.RawURLEncoding.EncodeToString(nonce),
	})
	if err != nil {
		return "", err
	}

	signed := referenceVersion + "." + base64.RawURLEncoding.EncodeToString(raw)
	return signed + "." + base64.RawURLEncoding.EncodeToString(c.mac(signed)), nil
}

// Decode verifies and parses a reference. References in the older
// "userId:PLAN" form are still accepted when the plan exists.
func (c *ReferenceCodec) Decode(value string) (Reference, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, referenceVersion+".") {
		return c.decodeSigned(value)
	}
	return decodeLegacyReference(value)
}

func (c *ReferenceCodec) decodeSigned(value string) (Reference, error) {
	if len(c.secret) == 0 {
		return Reference{}, fmt.Errorf("%w: REFERENCE_SECRET is empty", ErrNotConfigured)
	}
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return Reference{}, ErrInvalidReference
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || !hmac.Equal(sig, c.mac(parts[0]+"."+parts[1])) {
		return Reference{}, fmt.Errorf("%w: signature mismatch", ErrInvalidReference)
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Reference{}, ErrInvalidReference
	}
	var p referencePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Reference{}, ErrInvalidReference
	}
	plan, ok := LookupPlan(p.P)
	if !ok || strings.TrimSpace(p.U) == "" {
		return Reference{}, ErrInvalidReference
	}
	return Reference{UserID: p.U, PlanKey: plan.Key}, nil
}

func decodeLegacyReference(value string) (Reference, error) {
	i := strings.LastIndex(value, ":")
	if i <= 0 || i == len(value)-1 {
		return Reference{}, ErrInvalidReference
	}
	userID := strings.TrimSpace(value[:i])
	plan, ok := LookupPlan(value[i+1:])
	if !ok || userID == "" {
		return Reference{}, ErrInvalidReference
	}
	return Reference{UserID: userID, PlanKey: plan.Key}, nil
}

func (c *ReferenceCodec) mac(message string) []byte {
	m := hmac.New(sha256.New, c.secret)
	m.Write([]byte(message))
	return m.Sum(nil)
}
