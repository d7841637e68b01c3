// Package config resolves engine configuration from environment variables,
// in the style of the teacher's pkg/envutil typed getters and
// pkg/config/dbconfig's Config/LoadFromEnv pattern.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetString returns the env var value or fallback when unset/empty.
func GetString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetInt returns the parsed integer env var or fallback on missing/invalid values.
func GetInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// GetBool parses common bool strings (true/1/yes/on) and uses fallback when unset.
func GetBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes" || v == "on"
	}
	return fallback
}

// GetDuration parses a duration env var, returning fallback when unset/invalid.
func GetDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
