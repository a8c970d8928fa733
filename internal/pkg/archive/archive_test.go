package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (p *recordingPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if p.err != nil {
		return nil, p.err
	}
	body, _ := io.ReadAll(params.Body)
	p.inputs = append(p.inputs, params)
	p.bodies = append(p.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestConfig_ObjectKey(t *testing.T) {
	cfg := &Config{Prefix: "webhooks"}
	at := time.Date(2024, 3, 7, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	assert.Equal(t, "webhooks/2024/03/08/mercadopago-abc-123.json", cfg.ObjectKey("mercadopago", "abc-123", at))
	assert.Equal(t, "webhooks/2024/03/08/mercadopago-a_b_c.json", cfg.ObjectKey("mercadopago", "a/b c", at))
	assert.Equal(t, "webhooks/2024/03/08/unknown-unknown.json", (&Config{}).ObjectKey("", " ", at))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())

	cfg := &Config{Enabled: true, AccessKeyID: "id", SecretAccessKey: "secret"}
	assert.ErrorContains(t, cfg.Validate(), "S3_ARCHIVE_BUCKET")

	cfg.BucketName = "payloads"
	assert.NoError(t, cfg.Validate())
}

func TestNewClient_Disabled(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClient_Archive(t *testing.T) {
	putter := &recordingPutter{}
	c := &Client{s3: putter, config: &Config{Enabled: true, BucketName: "payloads", Prefix: "webhooks"}}

	key, err := c.Archive(context.Background(), "mercadopago", "req-1", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), []byte(`{"type":"payment"}`))
	require.NoError(t, err)
	assert.Equal(t, "webhooks/2024/01/02/mercadopago-req-1.json", key)

	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "payloads", aws.ToString(putter.inputs[0].Bucket))
	assert.Equal(t, "application/json", aws.ToString(putter.inputs[0].ContentType))
	assert.Equal(t, `{"type":"payment"}`, string(putter.bodies[0]))

	putter.err = errors.New("boom")
	_, err = c.Archive(context.Background(), "mercadopago", "req-2", time.Now(), []byte(`{}`))
	assert.ErrorContains(t, err, "boom")
}
