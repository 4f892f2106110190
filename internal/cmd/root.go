// Package cmd wires the codexloop command line interface.
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codexloop/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "codexloop",
	Short: "Spec-driven coding agent orchestrator",
	Long: `Codexloop drives an external coding agent through an implement and
review loop in an isolated git worktree. Each run takes a specification
file, iterates until a reviewer turn approves the result or the review
budget runs out, and finishes by opening a pull request.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context so in-flight agent
// calls stop on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/codexloop/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CODEXLOOP")
	// CODEXLOOP_WORKFLOW_MAX_REVIEWS maps to workflow.max_reviews
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}
