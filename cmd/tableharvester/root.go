package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
)

// newRootCmd builds a fresh command tree with its own viper instance.
func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	root := &cobra.Command{
		Use:   "tableharvester",
		Short: "Log in to a web application and export a paginated table as JSON.",
		// Run errors are logged by the runner; main decides the exit code.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.AddCommand(newRunCmd(v, &cfgFile))
	return root
}

func newRunCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Authenticate, navigate to the table and harvest every page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd.Flags(), *cfgFile)
			if err != nil {
				return err
			}
			return runHarvest(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.String("url", "", "application entry URL")
	flags.StringP("output", "o", "", "output JSON file (default product_data.json)")
	flags.StringP("session", "s", "", "session state file (default session_state.json)")
	flags.String("driver", "", "browser driver: chromedp or rod")
	flags.Bool("headless", false, "run the browser without a window")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	return cmd
}

// flagKeys maps run flags onto configuration keys.
var flagKeys = map[string]string{
	"url":       "app.url",
	"output":    "output.path",
	"session":   "session.path",
	"driver":    "browser.driver",
	"headless":  "browser.headless",
	"log-level": "logger.level",
}

// loadConfig binds the flags the user actually set, then reads and validates
// the configuration.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, cfgFile string) (*config.Config, error) {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, entity.NewRunError(entity.KindConfig, "bind flags", err)
		}
	}
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, entity.NewRunError(entity.KindConfig, "load config", err)
	}
	return cfg, nil
}
