package config

import (
	"os"
	"path/filepath"
)

const (
	defaultAPIURL = "http://localhost:8080"
	tokenFileName = ".inspect_token"
)

// APIURL returns the base URL for the API. It can be overridden with the
// INSPECT_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("INSPECT_API_URL"); v != "" {
		return v
	}
	return defaultAPIURL
}

// SaveToken writes the JWT token to the user's home directory.
func SaveToken(token string) error {
	return os.WriteFile(tokenPath(), []byte(token), 0600)
}

// ReadToken returns the stored JWT token. The INSPECT_API_TOKEN environment
// variable takes precedence over the token file.
func ReadToken() (string, error) {
	if v := os.Getenv("INSPECT_API_TOKEN"); v != "" {
		return v, nil
	}
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RemoveToken deletes the stored token file.
func RemoveToken() error {
	return os.Remove(tokenPath())
}

func tokenPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, tokenFileName)
}
