package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type serveConfig struct {
	bind         string
	port         int
	envFile      string
	autoMigrate  bool
	questionPack string
	noDatabase   bool
	shutdown     time.Duration
}

func (c *serveConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.shutdown <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}

func (c *serveConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

func newCmd(cfg *serveConfig) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("HIVEMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "hivemind",
		Short:   "Serves the Hivemind crowd-guessing game API and drives round timers.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: HIVEMIND_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: HIVEMIND_PORT)")
	fs.StringVar(&cfg.envFile, "env-file", ".env", "optional dotenv file with game settings (env: HIVEMIND_ENV_FILE)")
	fs.BoolVar(&cfg.autoMigrate, "auto-migrate", false, "run gorm auto-migrations on startup (env: HIVEMIND_AUTO_MIGRATE)")
	fs.StringVar(&cfg.questionPack, "question-pack", "", "serve questions from this database pack instead of the csv file (env: HIVEMIND_QUESTION_PACK)")
	fs.BoolVar(&cfg.noDatabase, "no-database", false, "run in memory even when DATABASE_URL is set (env: HIVEMIND_NO_DATABASE)")
	fs.DurationVar(&cfg.shutdown, "shutdown-timeout", 5*time.Second, "time allowed for in-flight requests on shutdown (env: HIVEMIND_SHUTDOWN_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("hivemind v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
