package utils

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrCredentialsMissing signals that the Basic Auth pair is not configured.
var ErrCredentialsMissing = errors.New("basic auth credentials are not configured")

// Credential is the username/password pair accepted by the auth gate.
type Credential struct {
	Username string
	Password string
}

// LoadCredential reads the Basic Auth pair from the environment. Variables
// found in envFile are loaded first without overriding values that are
// already set in the process environment.
func LoadCredential(cfg Config) (Credential, error) {
	if cfg.Auth.EnvFile != "" {
		if err := godotenv.Load(cfg.Auth.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Credential{}, fmt.Errorf("load %s: %w", cfg.Auth.EnvFile, err)
		}
	}

	cred := Credential{
		Username: os.Getenv(cfg.Auth.UserEnv),
		Password: os.Getenv(cfg.Auth.PasswordEnv),
	}
	if cred.Username == "" || cred.Password == "" {
		return Credential{}, fmt.Errorf("%w: set %s and %s", ErrCredentialsMissing, cfg.Auth.UserEnv, cfg.Auth.PasswordEnv)
	}
	return cred, nil
}
