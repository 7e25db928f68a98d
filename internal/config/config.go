package config

import "os"

// Config holds the relay process configuration, read from the environment
// (a local .env file is loaded by the relay binary before this runs).
type Config struct {
	// HTTPAddr is the listen address for the HTTP/websocket server.
	HTTPAddr string
	// RedisAddr enables redis-backed presence and cross-node fan-out when
	// set; empty means single-node operation.
	RedisAddr string
	// JWTSecret signs and verifies the anonymous participant tokens.
	JWTSecret string
}

// Load reads the configuration, applying defaults suitable for local
// development.
func Load() Config {
	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		JWTSecret: getenv("JWT_SECRET", "dev-only-secret"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
