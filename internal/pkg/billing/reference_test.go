package billing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceCodec_RoundTrip(t *testing.T) {
	codec := NewReferenceCodec("ref-secret")

	encoded, err := codec.Encode(Reference{UserID: "user:with:colons", PlanKey: "monthly"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "v1."))
	assert.LessOrEqual(t, len(encoded), 256)

	ref, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, Reference{UserID: "user:with:colons", PlanKey: "MONTHLY"}, ref)

	again, err := codec.Encode(Reference{UserID: "user:with:colons", PlanKey: "MONTHLY"})
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "nonce makes every reference unique")
}

func TestReferenceCodec_RejectsTampering(t *testing.T) {
	codec := NewReferenceCodec("ref-secret")
	encoded, err := codec.Encode(Reference{UserID: "u1", PlanKey: "ANNUAL"})
	require.NoError(t, err)

	parts := strings.Split(encoded, ".")
	forged, err := NewReferenceCodec("other-secret").Encode(Reference{UserID: "u2", PlanKey: "LIFETIME"})
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")

	_, err = codec.Decode(parts[0] + "." + forgedParts[1] + "." + parts[2])
	assert.ErrorIs(t, err, ErrInvalidReference)

	_, err = codec.Decode(forged)
	assert.ErrorIs(t, err, ErrInvalidReference)

	_, err = codec.Decode("v1.only-two")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestReferenceCodec_Legacy(t *testing.T) {
	codec := NewReferenceCodec("")

	tests := []struct {
		in      string
		want    Reference
		wantErr bool
	}{
		{in: "user42:LIFETIME", want: Reference{UserID: "user42", PlanKey: "LIFETIME"}},
		{in: "user42:annual", want: Reference{UserID: "user42", PlanKey: "ANNUAL"}},
		{in: "a:b:MONTHLY", want: Reference{UserID: "a:b", PlanKey: "MONTHLY"}},
		{in: "user42:FREE", wantErr: true},
		{in: "user42:", wantErr: true},
		{in: ":LIFETIME", wantErr: true},
		{in: "user42", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := codec.Decode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReferenceCodec_EncodeRequiresSecret(t *testing.T) {
	_, err := NewReferenceCodec(" ").Encode(Reference{UserID: "u", PlanKey: "MONTHLY"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewReferenceCodec("s").Encode(Reference{UserID: "u", PlanKey: "GOLD"})
	assert.ErrorIs(t, err, ErrInvalidReference)
}
