// root.go viper root command code
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
)

// RootCommand creates and returns the root command for the photoacoustic
// core daemon.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "photoacoustic-daemon",
		Short: "Photoacoustic gas-sensing instrument core daemon",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		log.Printf("error setting up flags: %v\n", err)
	}

	runCmd := RunCommand(settings)
	versionCmd := VersionCommand()

	rootCmd.AddCommand(runCmd, versionCmd)
	rootCmd.RunE = runCmd.RunE

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() != versionCmd.Name() {
			if err := initialize(); err != nil {
				return fmt.Errorf("error initializing: %w", err)
			}
		}
		return nil
	}

	return rootCmd
}

// initialize is called before any subcommand runs. Config loading happens
// in each subcommand's RunE since it needs the parsed flags already bound.
func initialize() error {
	return nil
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (overrides the default search path)")
	rootCmd.PersistentFlags().Int("http-port", 0, "Override the introspection HTTP server port (0 keeps config.yaml's value)")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
