package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads the configuration file once. The result does not
// include overrides from the settings store.
func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path == "" {
			defaultPath, err := config.DefaultPath()
			if err != nil {
				c.configErr = fmt.Errorf("determine default config path: %w", err)
				return
			}
			path = defaultPath
		} else {
			expanded, err := config.ExpandPath(path)
			if err != nil {
				c.configErr = fmt.Errorf("resolve config path: %w", err)
				return
			}
			path = expanded
		}
		c.configPath = path

		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the settings database for the duration of fn.
func (c *commandContext) withStore(fn func(config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

// effectiveConfig applies the stored overrides to the file configuration.
func effectiveConfig(base config.Config, st *store.Store) (config.Config, map[string]string, error) {
	overrides, err := st.Settings().Map()
	if err != nil {
		return base, nil, fmt.Errorf("read settings: %w", err)
	}
	cfg := base
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return base, overrides, fmt.Errorf("apply stored settings: %w", err)
	}
	return cfg, overrides, nil
}
