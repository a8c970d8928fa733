package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	Token   string        `env:"SAMPLE_TOKEN,required"`
	Timeout time.Duration `env:"SAMPLE_TIMEOUT" envDefault:"15s"`
	Workers int           `env:"SAMPLE_WORKERS" envDefault:"2"`
}

func TestGetEnv_PrefersLoadedFile(t *testing.T) {
	t.Setenv("SAMPLE_KEY", "from-os")
	Env = map[string]string{"SAMPLE_KEY": "from-file"}
	t.Cleanup(func() { Env = nil })

	assert.Equal(t, "from-file", GetEnv("SAMPLE_KEY", "def"))
	assert.Equal(t, "def", GetEnv("SAMPLE_MISSING", "def"))
}

func TestParse(t *testing.T) {
	t.Setenv("SAMPLE_WORKERS", "8")
	Env = map[string]string{"SAMPLE_TOKEN": "abc", "SAMPLE_TIMEOUT": "2s"}
	t.Cleanup(func() { Env = nil })

	var cfg sampleConfig
	require.NoError(t, Parse(&cfg))
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.Workers)
}

func TestParse_MissingRequired(t *testing.T) {
	Env = map[string]string{}
	t.Cleanup(func() { Env = nil })

	var cfg sampleConfig
	assert.Error(t, Parse(&cfg))
}

func TestIsDev(t *testing.T) {
	Env = map[string]string{"APP_ENV": "dev"}
	t.Cleanup(func() { Env = nil })
	assert.True(t, IsDev())

	Env = map[string]string{"APP_ENV": "prod"}
	assert.False(t, IsDev())
}
