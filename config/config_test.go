package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := loadFromEnv(lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "ldap://localhost:389", cfg.LDAPURL)
	assert.Equal(t, "ou=People,dc=kmc,dc=gr,dc=jp", cfg.PeopleDN)
	assert.Equal(t, "kmc.gr.jp", cfg.MailDomain)
	assert.Equal(t, 200, cfg.GIDNumber)
	assert.Equal(t, "/bin/bash", cfg.LoginShell)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout)
	assert.Equal(t, uint32(500), cfg.PageSize)
	assert.Zero(t, cfg.UIDMin, "floors are opt-in")
	assert.Zero(t, cfg.RIDMin)
	assert.Empty(t, cfg.BindDN)
	assert.False(t, cfg.Verbose)
}

func TestLoadFromEnv_SettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.env")
	content := `LDAP_URL=ldaps://ldap.example.org:636
LDAP_BASEDN=dc=example,dc=org
MAIL_DOMAIN=example.org
GID_NUMBER=300
LOCK_TIMEOUT=5s
LOG_VERBOSE=true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	values, err := godotenv.Read(path)
	require.NoError(t, err)

	cfg, err := loadFromEnv(lookup(values))
	require.NoError(t, err)

	assert.Equal(t, "ldaps://ldap.example.org:636", cfg.LDAPURL)
	assert.Equal(t, "ou=People,dc=example,dc=org", cfg.PeopleDN)
	assert.Equal(t, "example.org", cfg.MailDomain)
	assert.Equal(t, 300, cfg.GIDNumber)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.True(t, cfg.Verbose)
}

func TestLoadFromEnv_AliasesDisabled(t *testing.T) {
	cfg, err := loadFromEnv(lookup(map[string]string{"ALIASES_FILE": "none"}))
	require.NoError(t, err)
	assert.Empty(t, cfg.AliasesFile)

	cfg, err = loadFromEnv(lookup(nil))
	require.NoError(t, err)
	assert.Equal(t, "/etc/aliases", cfg.AliasesFile)
}

func TestLoadFromEnv_Malformed(t *testing.T) {
	tests := map[string]map[string]string{
		"gid":       {"GID_NUMBER": "kmc"},
		"timeout":   {"LOCK_TIMEOUT": "soon"},
		"page size": {"LDAP_PAGESIZE": "0"},
		"verbose":   {"LOG_VERBOSE": "loud"},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadFromEnv(lookup(values))
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvConfig_MissingFile(t *testing.T) {
	_, err := LoadEnvConfig(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
