package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"kmc/guildbook/account"
	"kmc/guildbook/assets"
	"kmc/guildbook/audit"
	"kmc/guildbook/config"
	"kmc/guildbook/directory"
	"kmc/guildbook/metrics"
	"kmc/guildbook/web"

	"github.com/mordilloSan/go-logger/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	addr       string
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "guildbook",
	Short: "Serve the GuildBook account administration pages",
	Long: `Serve the GuildBook account administration pages.

Settings are read from the environment, optionally seeded from an env file.

Examples:
  # Serve on the default address with settings.env
  guildbook

  # Use another settings file and log at debug level
  guildbook --config /etc/guildbook/settings.env --verbose`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address for web server (e.g., :8080)")
	rootCmd.Flags().StringVar(&configFile, "config", "settings.env", "Path to env file with settings")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func initLogger(verbose bool) {
	var levels []logger.Level
	if verbose {
		levels = logger.AllLevels()
	} else {
		levels = []logger.Level{logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel}
	}
	logger.Init(logger.Config{
		Levels: levels,
	})
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadEnvConfig(configFile)
	if err != nil {
		return err
	}
	initLogger(verbose || cfg.Verbose)
	logger.InfoKV("guildbook starting", "ldap", cfg.LDAPURL, "base_dn", cfg.BaseDN, "verbose", verbose || cfg.Verbose)

	dir := directory.NewDirectory(cfg.BaseDN, cfg.PeopleDN, cfg.PageSize, directory.DialURL(cfg.LDAPURL, cfg.LDAPTimeout))
	if cfg.BindDN != "" {
		dir.WithReadCredentials(cfg.BindDN, cfg.BindPassword)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []account.Option{account.WithMetrics(m)}
	serverOpts := web.Options{
		Addr:             addr,
		RemoteUserHeader: cfg.RemoteUserHeader,
		PublicDir:        cfg.PublicDir,
		Metrics:          m,
	}

	if cfg.AuditDSN != "" {
		store, err := audit.Open(ctx, cfg.AuditDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, account.WithRecorder(store))
		serverOpts.History = store
		logger.Infof("recording provisioned accounts to the audit database")
	}

	manifestPath := filepath.Join(cfg.PublicDir, "assets", "manifest.json")
	manifest, err := assets.LoadManifest(manifestPath, cfg.WebpackDevServerURL)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warnf("asset manifest %s not found; pages are served without bundles", manifestPath)
	case err != nil:
		return err
	}
	serverOpts.Manifest = manifest

	settings := account.Settings{
		MailDomain:  cfg.MailDomain,
		HomeRoot:    cfg.HomeRoot,
		LoginShell:  cfg.LoginShell,
		GIDNumber:   cfg.GIDNumber,
		LockTimeout: cfg.LockTimeout,
	}
	provisioner := account.NewProvisioner(
		settings,
		account.NewCollisionChecker(dir, cfg.HomeRoot, cfg.AliasesFile),
		account.NewAllocator(dir, cfg.UIDMin, cfg.RIDMin),
		account.NewCredentialHasher(),
		dir,
		account.NewLock(),
		opts...,
	)

	server, err := web.NewServer(provisioner, dir, serverOpts)
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("web server error: %w", err)
	}
	return nil
}
