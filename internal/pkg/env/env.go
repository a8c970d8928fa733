package env

import (
	"os"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func SetupEnvFile() {
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/mywallet to project root
		"../../../.env", // Fallback for deeper nesting
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	// Containers usually inject plain environment variables.
	Env = map[string]string{}
	log.Warn("[Env] No .env file found, using process environment only")
}

// Parse fills a struct tagged for caarlos0/env from the process environment
// overlaid with the values read by SetupEnvFile.
func Parse(cfg any) error {
	return envparse.ParseWithOptions(cfg, envparse.Options{Environment: Environment()})
}

// Environment returns the merged key/value view used by GetEnv.
func Environment() map[string]string {
	out := make(map[string]string, len(Env)+32)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	for k, v := range Env {
		out[k] = v
	}
	return out
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
