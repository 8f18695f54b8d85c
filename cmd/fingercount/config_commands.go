package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/store"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and tune detection settings",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigSetCommand(ctx))
	configCmd.AddCommand(newConfigUnsetCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective detection settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(base config.Config, st *store.Store) error {
				cfg, overrides, err := effectiveConfig(base, st)
				if err != nil {
					return err
				}

				defaults := make(map[string]string)
				for _, o := range config.DefaultDetection().Options() {
					defaults[o.Key] = o.FormatValue()
				}

				rows := make([][]string, 0, len(config.OptionKeys()))
				for _, o := range cfg.Detection.Options() {
					value := o.FormatValue()
					origin := "default"
					if _, ok := overrides[o.Key]; ok {
						origin = "stored"
					} else if value != defaults[o.Key] {
						origin = "config file"
					}
					rows = append(rows, []string{o.Key, value, origin})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Option", "Value", "Source"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newConfigSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <option> <value>",
		Short: "Store a detection setting override",
		Long:  "Store a detection setting override. It takes effect the next time fingercount run starts.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			return ctx.withStore(func(base config.Config, st *store.Store) error {
				overrides, err := st.Settings().Map()
				if err != nil {
					return fmt.Errorf("read settings: %w", err)
				}
				overrides[key] = value

				cfg := base
				if err := cfg.ApplyOverrides(overrides); err != nil {
					return err
				}

				var stored config.Option
				for _, o := range cfg.Detection.Options() {
					if o.Key == key {
						stored = o
					}
				}

				if err := st.Settings().Set(key, stored.FormatValue()); err != nil {
					return fmt.Errorf("save setting: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, stored.FormatValue())
				return nil
			})
		},
	}
}

func newConfigUnsetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <option>",
		Short: "Remove a stored detection setting override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return ctx.withStore(func(_ config.Config, st *store.Store) error {
				if err := st.Settings().Delete(key); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("no stored override for %s", key)
					}
					return fmt.Errorf("delete setting: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", key)
				return nil
			})
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration and data file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", ctx.configPath)
			fmt.Fprintf(out, "Settings:    %s\n", cfg.DatabasePath())
			fmt.Fprintf(out, "Camera lock: %s\n", cfg.LockPath())
			return nil
		},
	}
}
