package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseProfile = `{
  // comments are allowed
  name: "demo",
  accountUrl: "https://bank.test/accounts",
  loginUrl: "https://bank.test/login",
  timezone: "Australia/Sydney",
  loginIndicator: "#login-form",
  login: {
    fields: [
      { credential: "user", selector: "#user", env: "DEMO_USER" },
      { credential: "password", selector: "#pass", env: "DEMO_PASS" },
    ],
    submit: "#go",
  },
  balances: { current: "#cur", available: "#avail" },
  transactions: {
    row: "li.tx",
    pendingMarker: ".p-date",
    pending: { amount: ".p-amt", description: ".p-desc", card: ".p-card", date: ".p-date" },
    settled: { amount: ".amt", description: ".desc", card: ".card", date: ".date" },
  },
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadProfile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json5", baseProfile)

	profile, err := ReadProfile(path)
	require.NoError(t, err)
	require.NoError(t, profile.Validate())

	assert.Equal(t, "demo", profile.Name)
	assert.Len(t, profile.Login.Fields, 2)
	assert.Equal(t, ".p-date", profile.Transactions.PendingMarker)
	assert.Equal(t, DefaultDateLayouts, profile.Layouts())

	loc, err := profile.Location()
	require.NoError(t, err)
	assert.Equal(t, "Australia/Sydney", loc.String())
}

func TestReadProfileLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json5", baseProfile)
	writeFile(t, dir, "config.local.json5", `{
		accountUrl: "https://bank.test/accounts/savings",
		dateLayouts: ["2006-01-02"],
	}`)

	profile, err := ReadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://bank.test/accounts/savings", profile.AccountURL)
	assert.Equal(t, "https://bank.test/login", profile.LoginURL)
	assert.Equal(t, []string{"2006-01-02"}, profile.Layouts())
}

func TestReadProfileMissing(t *testing.T) {
	_, err := ReadProfile(filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateListsEveryProblem(t *testing.T) {
	err := Profile{Timezone: "Mars/Olympus"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accountUrl is required")
	assert.Contains(t, err.Error(), "transactions.pendingMarker is required")
	assert.Contains(t, err.Error(), "login.fields must not be empty")
	assert.Contains(t, err.Error(), "Mars/Olympus")
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	dir := t.TempDir()
	profile, err := ReadProfile(writeFile(t, dir, "config.json5", baseProfile))
	require.NoError(t, err)

	t.Setenv("DEMO_USER", "12345678")
	t.Setenv("DEMO_PASS", "hunter2")

	creds, err := LoadCredentials(profile, "")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", creds["password"])
	assert.NotContains(t, creds.String(), "hunter2")
	assert.Equal(t, "Credentials{password, user}", creds.String())
}

func TestLoadCredentialsFromFile(t *testing.T) {
	dir := t.TempDir()
	profile, err := ReadProfile(writeFile(t, dir, "config.json5", baseProfile))
	require.NoError(t, err)

	path := writeFile(t, dir, "creds.json", `{"user": "u", "password": "p", "unused": "x"}`)
	creds, err := LoadCredentials(profile, path)
	require.NoError(t, err)
	assert.Equal(t, Credentials{"user": "u", "password": "p"}, creds)
}

func TestLoadCredentialsMissing(t *testing.T) {
	dir := t.TempDir()
	profile, err := ReadProfile(writeFile(t, dir, "config.json5", baseProfile))
	require.NoError(t, err)

	t.Setenv("DEMO_USER", "someone")
	t.Setenv("DEMO_PASS", "")

	_, err = LoadCredentials(profile, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestLoadEnvDefaults(t *testing.T) {
	for _, key := range []string{"SESSION_STORE", "SESSION_FILE", "NOTIFIED_FILE", "HEADLESS"} {
		t.Setenv(key, "")
	}
	env, _ := LoadEnv()
	assert.Equal(t, "file", env.SessionStore)
	assert.Equal(t, "cookies.json", env.SessionFile)
	assert.Equal(t, "notified.json", env.NotifiedFile)
	assert.True(t, env.Headless)

	t.Setenv("NOTIFIED_FILE", "/var/lib/ibank/notified.json")
	env, _ = LoadEnv()
	assert.Equal(t, "/var/lib/ibank/notified.json", env.NotifiedFile)
}
