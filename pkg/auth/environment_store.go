package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvCookie    = "SGSYNC_COOKIE"
	EnvUsername  = "SGSYNC_USERNAME"
	EnvUserAgent = "SGSYNC_USER_AGENT"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential. A non-empty username must match
// SGSYNC_USERNAME when that is set.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	cookie := os.Getenv(EnvCookie)
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	envUser := os.Getenv(EnvUsername)
	switch {
	case username == "" && envUser == "":
		username = "default"
	case username == "":
		username = envUser
	case envUser != "" && envUser != username:
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     username,
		Cookie:       cookie,
		UserAgent:    os.Getenv(EnvUserAgent),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the environment holds a cookie
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
