package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type GuildbookConfiguration struct {
	// Directory service
	LDAPURL      string
	BaseDN       string
	PeopleDN     string
	BindDN       string // read-only lookups; empty means anonymous
	BindPassword string
	LDAPTimeout  time.Duration
	PageSize     uint32

	// Provisioning
	MailDomain  string
	HomeRoot    string
	AliasesFile string
	GIDNumber   int
	LoginShell  string
	UIDMin      int
	RIDMin      int
	LockTimeout time.Duration

	// Web
	RemoteUserHeader    string
	PublicDir           string
	WebpackDevServerURL string

	AuditDSN string
	Verbose  bool
}

// LoadEnvConfig loads configName into the process environment (variables that
// are already set win) and builds the configuration from it. A missing file is
// not an error.
func LoadEnvConfig(configName string) (GuildbookConfiguration, error) {
	if err := godotenv.Load(configName); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return GuildbookConfiguration{}, fmt.Errorf("error loading %s: %w", configName, err)
	}
	return loadFromEnv(os.Getenv)
}

func loadFromEnv(getenv func(string) string) (GuildbookConfiguration, error) {
	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	baseDN := env("LDAP_BASEDN", "dc=kmc,dc=gr,dc=jp")
	cfg := GuildbookConfiguration{
		LDAPURL:             env("LDAP_URL", "ldap://localhost:389"),
		BaseDN:              baseDN,
		PeopleDN:            env("LDAP_PEOPLEDN", "ou=People,"+baseDN),
		BindDN:              getenv("LDAP_BINDDN"),
		BindPassword:        getenv("LDAP_PASSWORD"),
		MailDomain:          env("MAIL_DOMAIN", "kmc.gr.jp"),
		HomeRoot:            env("HOME_ROOT", "/home"),
		AliasesFile:         env("ALIASES_FILE", "/etc/aliases"),
		LoginShell:          env("LOGIN_SHELL", "/bin/bash"),
		RemoteUserHeader:    env("REMOTE_USER_HEADER", "X-Remote-User"),
		PublicDir:           env("PUBLIC_DIR", "public"),
		WebpackDevServerURL: getenv("WEBPACK_DEV_SERVER_URL"),
		AuditDSN:            getenv("AUDIT_DSN"),
	}

	// "none" turns the alias collision check off
	if cfg.AliasesFile == "none" {
		cfg.AliasesFile = ""
	}

	var err error
	if cfg.LDAPTimeout, err = parseDuration(env("LDAP_TIMEOUT", "10s"), "LDAP_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.LockTimeout, err = parseDuration(env("LOCK_TIMEOUT", "30s"), "LOCK_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.GIDNumber, err = parseInt(env("GID_NUMBER", "200"), "GID_NUMBER"); err != nil {
		return cfg, err
	}
	if cfg.UIDMin, err = parseInt(env("UID_MIN", "0"), "UID_MIN"); err != nil {
		return cfg, err
	}
	if cfg.RIDMin, err = parseInt(env("RID_MIN", "0"), "RID_MIN"); err != nil {
		return cfg, err
	}

	pageSize, err := parseInt(env("LDAP_PAGESIZE", "500"), "LDAP_PAGESIZE")
	if err != nil {
		return cfg, err
	}
	if pageSize <= 0 {
		return cfg, fmt.Errorf("LDAP_PAGESIZE must be positive, got %d", pageSize)
	}
	cfg.PageSize = uint32(pageSize)

	if v := getenv("LOG_VERBOSE"); v != "" {
		if cfg.Verbose, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("failed to parse LOG_VERBOSE: %w", err)
		}
	}

	return cfg, nil
}

func parseInt(value, key string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(value, key string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %s: %w", key, err)
	}
	return d, nil
}
