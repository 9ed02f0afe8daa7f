package utils

import (
	"os"
	"strings"
)

// EnvOr returns the trimmed value of the environment variable name, or
// fallback when it is unset or blank.
func EnvOr(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}

	return fallback
}
