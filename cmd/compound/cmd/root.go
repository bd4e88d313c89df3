package cmd

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rustyeddy/compound/config"
	"github.com/rustyeddy/compound/logger"
)

var rootCmd = &cobra.Command{
	Use:   "compound",
	Short: "Compounding plan tracker with a simulated margin account",
	Long: `Compound plans a capital challenge as a daily compounding path and
tracks the actual outcome of every trading day against it.

It provides tools for:
  - Building and editing the plan calendar and trading journal
  - Sizing and simulating margin trades on a random-walk price feed
  - Querying the closed-trade journal
  - Streaming simulated quotes to a browser over WebSocket

Settings are read from --config, then COMPOUND_* environment variables
(a .env file in the working directory is loaded first).`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("user", "", "plan owner")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("store.user", rootCmd.PersistentFlags().Lookup("user"))
}

// loadConfig resolves the configuration for every subcommand. The file
// supplies the base and COMPOUND_* variables or flags override single keys.
func loadConfig(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	viper.SetEnvPrefix("COMPOUND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg = config.Default()
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if v := viper.GetString("log.level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("store.user"); v != "" {
		cfg.Store.User = v
	}
	if v := viper.GetString("store.path"); v != "" {
		cfg.Store.Path = v
	}
	if v := viper.GetString("journal.db_path"); v != "" {
		cfg.Journal.DBPath = v
	}
	if v := viper.GetString("server.addr"); v != "" {
		cfg.Server.Addr = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log = logger.New(cfg.Log)
	log.WithComponent("cli").WithField("command", cmd.CommandPath()).Debug("config loaded")
	return nil
}
