package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Username:  "testuser",
		Cookie:    "phpsessid_value_12345",
		UserAgent: "TestAgent/1.0",
	}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("testuser")
	require.NoError(t, err)
	assert.Equal(t, account.Username, retrieved.Username)
	assert.Equal(t, account.Cookie, retrieved.Cookie)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	sanitized := SanitizeAccount(account)
	assert.Equal(t, "phps...2345", sanitized.Cookie)
	assert.Equal(t, account.Username, sanitized.Username)
	assert.Equal(t, "********", maskString("short"))

	require.NoError(t, manager.Delete("testuser"))
	_, err = manager.Retrieve("testuser")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Zero(t, mockStore.Count())

	assert.ErrorIs(t, manager.Delete("testuser"), ErrCredentialsNotFound)
}

func TestManagerValidation(t *testing.T) {
	manager, _ := NewMockManager()
	assert.Error(t, manager.Store(&Account{Cookie: "x"}))
	assert.Error(t, manager.Store(&Account{Username: "x"}))
	assert.Error(t, manager.Store(nil))
}

func TestManagerFallsBack(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	backup := NewMockStore()
	manager := NewManagerWithStores(broken, backup)

	require.NoError(t, manager.Store(&Account{Username: "me", Cookie: "abc"}))
	assert.Zero(t, broken.Count())
	assert.True(t, backup.Exists("me"))

	backup.StoreError = errors.New("disk full")
	err := manager.Store(&Account{Username: "me", Cookie: "abc"})
	assert.ErrorContains(t, err, "disk full")
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	now := time.Now()
	require.NoError(t, older.Store(&Account{Username: "a", Cookie: "old", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Account{Username: "a", Cookie: "new", LastModified: now}))
	require.NoError(t, older.Store(&Account{Username: "b", Cookie: "b", LastModified: now.Add(-2 * time.Hour)}))

	manager := NewManagerWithStores(older, newer)
	accounts, err := manager.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].Username)
	assert.Equal(t, "new", accounts[0].Cookie)

	def, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "a", def.Username)
}

func TestEncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.enc")
	t.Setenv(EnvPassphrase, "test_passphrase_123")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Username: "encrypted_user", Cookie: "encrypted_session"}
	require.NoError(t, store.Store(account))

	retrieved, err := store.Retrieve("encrypted_user")
	require.NoError(t, err)
	assert.Equal(t, account.Cookie, retrieved.Cookie)
	assert.True(t, store.Exists("encrypted_user"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("encrypted_session")), "file holds no plaintext cookie")

	// a second store with the same passphrase reads the same file
	again, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	accounts, err := again.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	t.Setenv(EnvPassphrase, "wrong")
	wrong, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = wrong.Retrieve("encrypted_user")
	assert.Error(t, err)

	require.NoError(t, again.Delete("encrypted_user"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "last account removes the file")
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPassphrase, "")

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "me", Cookie: "c"}))

	pass, err := os.ReadFile(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.NotEmpty(t, pass)

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	_, err = reopened.Retrieve("me")
	assert.NoError(t, err)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvCookie, "")
	store := NewEnvironmentStore()
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv(EnvCookie, "env_session")
	t.Setenv(EnvUsername, "")
	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env_session", account.Cookie)
	assert.Equal(t, "default", account.Username)

	t.Setenv(EnvUsername, "me")
	account, err = store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "me", account.Username)
	assert.True(t, store.Exists("me"))
	assert.False(t, store.Exists("someone"))

	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("me"), ErrStoreUnavailable)

	manager := NewManagerWithStores(NewMockStore(), store)
	def, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "env_session", def.Cookie)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "alice", Cookie: "a"}))
	require.NoError(t, store.Store(&Account{Username: "bob", Cookie: "b"}))
	require.NoError(t, store.Store(&Account{Username: "alice", Cookie: "a2"}))

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	alice, err := store.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "a2", alice.Cookie)

	require.NoError(t, store.Delete("alice"))
	assert.False(t, store.Exists("alice"))
	assert.ErrorIs(t, store.Delete("alice"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "bob", accounts[0].Username)
}

func TestMockStoreErrors(t *testing.T) {
	store := NewMockStore()
	store.ListError = errors.New("injected error")
	_, err := store.List()
	assert.EqualError(t, err, "injected error")

	_, err = store.Retrieve("")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowCookieExtractionGuide(&buf)
	assert.Contains(t, buf.String(), "PHPSESSID")

	buf.Reset()
	ShowQuickExtractGuide(&buf)
	assert.Contains(t, buf.String(), "PHPSESSID")
}
