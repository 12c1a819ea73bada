package root

import (
	"io"
	"log"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"hit/internal/config"
	"hit/internal/service"
	"hit/internal/store"
)

type storeFlags struct {
	engine   string
	location string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.engine, "store", "", "store engine: sqlite, json, bolt or postgres")
	cmd.Flags().StringVar(&f.location, "data", "", "store file path, or DSN for postgres")
}

// loadConfig applies explicitly set flags over the layered config.
func (f *storeFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Engine = strings.ToLower(strings.TrimSpace(f.engine))
		if !cmd.Flags().Changed("data") {
			cfg.Store.Location = store.DefaultLocation(cfg.Store.Engine)
		}
	}
	if cmd.Flags().Changed("data") {
		cfg.Store.Location = f.location
	}
	return cfg, nil
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	st, err := store.NewByEngine(cfg.Store.Engine, cfg.Store.Location)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s store", cfg.Store.Engine)
	}
	cleanup := func() {
		if closer, ok := st.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Printf("store close failed: %v", err)
			}
		}
	}
	return st, cleanup, nil
}

// openService is the offline service used by the reporting commands.
func openService(cmd *cobra.Command, flags *storeFlags) (*service.Service, func(), error) {
	cfg, err := flags.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, cleanup, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return service.New(st, nil, nil), cleanup, nil
}

func userKeyFor(user string) string {
	user = strings.TrimSpace(user)
	if user == "" || user == store.GuestKey {
		return store.GuestKey
	}
	if strings.HasPrefix(user, "user:") {
		return user
	}
	return store.UserKey(user)
}
