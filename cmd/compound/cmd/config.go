package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/compound/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  compound config init -o compound.yaml
  compound config validate -f compound.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "compound.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.Default().SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  compound --config %s plan init\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Plan: $%.2f -> $%.2f in %d days from %s\n",
		c.Plan.InitialCapital, c.Plan.FinalTarget, c.Plan.Tenure, c.Plan.AnchorDate)
	fmt.Printf("  Account: %s (%s, 1:%d)\n", c.Account.ID, c.Account.Currency, c.Account.Leverage)
	fmt.Printf("  Store: %s %s (user %s)\n", c.Store.Type, c.Store.Path, c.Store.User)
	fmt.Printf("  Journal: %s\n", c.Journal.Type)
	fmt.Printf("  Risk: %.1f%% per trade, max %d open\n", c.Risk.DefaultRiskPct*100, c.Risk.MaxOpenPositions)
	return nil
}
