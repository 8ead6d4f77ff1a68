// Package auth resolves API callers to team principals and locates the
// Gemini API key.
package auth

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".brand-studio"
	credentialFile = "credentials.gpg"
)

// GetAPIKey retrieves the Gemini API key for local use.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. GPG-encrypted file at ~/.brand-studio/credentials.gpg
//
// Lambda deployments read the key from SSM instead (see lambdaboot).
func GetAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromGPG()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Error().Err(err).Msg("Failed to retrieve API key")
	return "", fmt.Errorf("API key not found. Set GEMINI_API_KEY or store it in ~/%s/%s", credentialDir, credentialFile)
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}
	if passphrasePath, ok := passphraseFile(); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// passphraseFile returns ~/.brand-studio/.gpg-passphrase if it exists and
// is readable only by its owner.
func passphraseFile() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	p := filepath.Join(home, credentialDir, ".gpg-passphrase")
	fi, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if mode := fi.Mode().Perm(); mode&0077 != 0 {
		log.Warn().
			Str("passphrase_file", p).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Passphrase file has insecure permissions (should be 0600); skipping")
		return "", false
	}
	return p, true
}
