package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kpauljoseph/pagedesk/internal/catalog"
	"github.com/kpauljoseph/pagedesk/internal/config"
	"github.com/kpauljoseph/pagedesk/internal/engine"
	"github.com/kpauljoseph/pagedesk/internal/session"
	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

// app carries what every subcommand needs once flags and config are read.
type app struct {
	configPath string
	verbose    bool
	debug      bool

	engineMode string
	outputDir  string
	remoteURL  string

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "pagedesk",
		Short:        "Reorder, rotate, delete and rewrite the pages of PDF documents",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to config file (default $XDG_CONFIG_HOME/pagedesk/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVar(&a.debug, "debug", false, "enable debug mode with trace logging")
	flags.StringVar(&a.engineMode, "engine", "", "document engine: local or remote (overrides config)")
	flags.StringVar(&a.outputDir, "output-dir", "", "directory for edited documents (overrides config)")
	flags.StringVar(&a.remoteURL, "remote-url", "", "remote engine URL (overrides config)")

	root.AddCommand(
		newEditCmd(a),
		newServeCmd(a),
		newInfoCmd(a),
		newCompareCmd(a),
		newCatalogCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.log = logger.New(
		logger.WithPrefix("[pagedesk] "),
		logger.WithOutput(cmd.ErrOrStderr()),
	)
	a.log.SetVerbose(a.verbose)
	if a.debug {
		a.log.SetLevel(logger.LevelTrace)
	}
	if a.verbose {
		a.log.Debug("Verbose logging enabled")
	}

	path := a.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return fmt.Errorf("failed to locate config: %w", err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if a.engineMode != "" {
		cfg.Engine.Mode = a.engineMode
	}
	if a.outputDir != "" {
		cfg.Engine.OutputDir = a.outputDir
	}
	if a.remoteURL != "" {
		cfg.Engine.RemoteURL = a.remoteURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log.Trace("loaded config from %s", path)
	return nil
}

// backend builds the configured document engine. A remote engine that does
// not answer is reported but not fatal; the session retries on every call.
func (a *app) backend(ctx context.Context) (engine.Backend, error) {
	switch a.cfg.Engine.Mode {
	case config.EngineRemote:
		remote, err := engine.NewRemote(engine.RemoteOptions{
			URL:    a.cfg.Engine.RemoteURL,
			Logger: a.log.Named("remote"),
		})
		if err != nil {
			return nil, err
		}
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := remote.CheckConnection(checkCtx); err != nil {
			a.log.Warn("Remote engine at %s is not reachable: %v", a.cfg.Engine.RemoteURL, err)
		} else {
			a.log.Info("Connected to remote engine at %s", a.cfg.Engine.RemoteURL)
		}
		return remote, nil
	default:
		return engine.NewLocal(engine.LocalOptions{
			OutputDir:      a.cfg.Engine.OutputDir,
			ThumbnailWidth: a.cfg.Engine.ThumbnailWidth,
			OCR:            a.cfg.Engine.OCR,
			Logger:         a.log.Named("engine"),
		})
	}
}

func (a *app) catalog() (catalog.Store, error) {
	switch a.cfg.Catalog.Driver {
	case config.CatalogPostgres:
		return catalog.Open(catalog.DriverPostgres, a.cfg.Catalog.DSN)
	default:
		path := a.cfg.Catalog.Path
		if path == "" {
			var err error
			if path, err = catalog.DefaultPath(); err != nil {
				return nil, fmt.Errorf("failed to locate catalog: %w", err)
			}
		}
		return catalog.Open(catalog.DriverFile, path)
	}
}

// openSession starts a session on path. The returned cleanup flushes unsaved
// page order, closes the session and the catalog.
func (a *app) openSession(ctx context.Context, path string) (*session.Session, func(), error) {
	backend, err := a.backend(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := session.OptionsFromConfig(a.cfg)
	opts.Logger = a.log

	store, err := a.catalog()
	if err != nil {
		a.log.Warn("Catalog disabled: %v", err)
		store = nil
	} else {
		opts.Catalog = store
	}

	sess, err := session.Open(ctx, backend, path, opts)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		flush(sess, a.cfg.Engine.Timeout, a.log)
		sess.Close()
		if store != nil {
			store.Close()
		}
	}
	return sess, cleanup, nil
}

// flush saves a pending page order before exit and waits for the save to
// land, up to timeout.
func flush(sess *session.Session, timeout time.Duration, log *logger.Logger) {
	changes, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	if _, err := sess.Save(); err != nil {
		return
	}
	deadline := time.After(timeout)
	for {
		snap, err := sess.State()
		if err != nil || (snap.SaveState != models.SaveSaving && snap.Busy == "" &&
			snap.ContentState != models.ContentCommitting) {
			if err == nil && snap.Dirty {
				log.Warn("Exiting with unsaved page order")
			}
			return
		}
		select {
		case <-changes:
		case <-deadline:
			log.Warn("Gave up waiting for pending saves")
			return
		}
	}
}
