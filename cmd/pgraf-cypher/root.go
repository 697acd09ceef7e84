package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/pgraf-cypher/internal/cache"
	"github.com/DeusData/pgraf-cypher/internal/config"
	"github.com/DeusData/pgraf-cypher/internal/engine"
	"github.com/DeusData/pgraf-cypher/internal/history"
	"github.com/DeusData/pgraf-cypher/internal/store"
	"github.com/DeusData/pgraf-cypher/internal/translate"
)

var errNoDatabase = errors.New("no database configured: set database.url or DATABASE_URL")

// app carries state shared by all subcommands of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	closers []func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "pgraf-cypher",
		Short:        "Translate Cypher graph queries into PostgreSQL over nodes/edges tables",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: .pgraf-cypher.yaml in ., $HOME, $HOME/.config/pgraf-cypher)")

	root.AddCommand(
		newTranslateCmd(a),
		newQueryCmd(a),
		newServeCmd(a),
		newInitSchemaCmd(a),
		newSchemaCmd(a),
		newSeedCmd(a),
		newNodeCmd(a),
		newEdgesCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newInstallCmd(a),
		newUninstallCmd(a),
	)
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pgraf-cypher", version)
		},
	})
	return root
}

// config loads the configuration once and installs the slog handler on the
// command's stderr.
func (a *app) config(cmd *cobra.Command) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Loader{File: a.cfgFile}.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cmd.ErrOrStderr(), cfg.Log)
	a.cfg = cfg
	return cfg, nil
}

func setupLogging(w io.Writer, lc config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(lc.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if lc.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// engine builds the engine from configuration. The store is opened when
// database.url is set; with needDB it is required.
func (a *app) engine(cmd *cobra.Command, needDB bool) (*engine.Engine, *store.Store, error) {
	cfg, err := a.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()

	opts := []engine.Option{
		engine.WithValidation(cfg.ValidateSQL),
		engine.WithConcurrency(cfg.Batch.Concurrency),
	}

	c, err := a.openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	if c != nil {
		opts = append(opts, engine.WithCache(c))
	}

	if cfg.History.Enabled {
		h, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, h.Close)
		opts = append(opts, engine.WithHistory(h))
	}

	var st *store.Store
	switch {
	case cfg.Database.URL != "":
		st, err = store.Open(ctx, cfg.Database.URL, cfg.Store())
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, st.Close)
		opts = append(opts, engine.WithExecutor(st))
	case needDB:
		return nil, nil, errNoDatabase
	}

	return engine.New(translate.New(cfg.Translator()), opts...), st, nil
}

func (a *app) openCache(ctx context.Context, cc config.CacheConfig) (cache.Cache, error) {
	if cc.RedisAddr != "" {
		r, err := cache.DialRedis(ctx, cc.RedisAddr, cc.TTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	}
	if cc.Size > 0 {
		return cache.NewMemory(cc.Size, cc.TTL), nil
	}
	return nil, nil
}

// close releases everything engine opened, in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("cli.close", "err", err)
		}
	}
	a.closers = nil
}
