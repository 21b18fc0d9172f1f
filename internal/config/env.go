package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Env is the process environment the scraper reads.
type Env struct {
	SessionStore  string
	SessionFile   string
	NotifiedFile  string
	DBConn        string
	RedisAddr     string
	RedisPassword string
	WebhookURL    string
	ChromePath    string
	Headless      bool
}

// LoadEnv loads an optional .env file and reads the environment.
// The returned bool reports whether a .env file was found.
func LoadEnv() (Env, bool) {
	loaded := godotenv.Load() == nil

	env := Env{
		SessionStore:  getenv("SESSION_STORE", "file"),
		SessionFile:   getenv("SESSION_FILE", "cookies.json"),
		NotifiedFile:  getenv("NOTIFIED_FILE", "notified.json"),
		DBConn:        os.Getenv("DB_CONN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		ChromePath:    os.Getenv("CHROME_PATH"),
		Headless:      true,
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			env.Headless = b
		}
	}
	return env, loaded
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Credentials are the named secrets typed into the login form.
// They never leave the process: String and MarshalLogObject redact values.
type Credentials map[string]string

func (c Credentials) names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{%s}", strings.Join(c.names(), ", "))
}

func (c Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for _, name := range c.names() {
		enc.AddString(name, "[redacted]")
	}
	return nil
}

// LoadCredentials resolves every credential the profile asks for, either from
// a JSON object file (when path is set) or from each field's env var.
func LoadCredentials(profile Profile, path string) (Credentials, error) {
	source := map[string]string{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		if err := json.Unmarshal(raw, &source); err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
	}

	creds := Credentials{}
	var missing []string
	for _, field := range profile.Login.Fields {
		value := source[field.Credential]
		if path == "" && field.Env != "" {
			value = os.Getenv(field.Env)
		}
		if value == "" {
			missing = append(missing, field.Credential)
			continue
		}
		creds[field.Credential] = value
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return creds, nil
}
