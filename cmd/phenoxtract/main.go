package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
	"github.com/synaptica-ai/phenoxtract/pkg/common/database"
	"github.com/synaptica-ai/phenoxtract/pkg/common/logger"
	"github.com/synaptica-ai/phenoxtract/pkg/ontology"
)

var mainCmd = &cobra.Command{
	Use: "phenoxtract",

	Short: "Extracts phenopackets from tabular clinical data described by a YAML manifest.",

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path := viper.GetString("config"); path != "" {
			viper.SetConfigFile(path)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
		}
		logger.Configure(os.Stderr, viper.GetString("log.level"), viper.GetString("log.format"))
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	viper.SetEnvPrefix(config.ToolName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	flags := mainCmd.PersistentFlags()
	flags.String("config", "", "Optional settings file (YAML, TOML or JSON).")
	flags.String("log-level", "warn", "Log level: debug, info, warn or error.")
	flags.String("log-format", "text", "Log format: text or json.")
	flags.Duration("vocab-timeout", 0, "Timeout for remote vocabulary lookups.")
	flags.Bool("cache", false, "Cache remote vocabulary lookups in Redis.")

	viper.BindPFlag("config", flags.Lookup("config"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
	viper.BindPFlag("vocab.timeout", flags.Lookup("vocab-timeout"))
	viper.BindPFlag("cache", flags.Lookup("cache"))
}

// ontologyOptions merges flags over the process environment.
func ontologyOptions() ontology.Options {
	cfg := config.Load()
	opts := ontology.OptionsFromConfig(cfg)
	if d := viper.GetDuration("vocab.timeout"); d > 0 {
		opts.Timeout = d
	}
	if viper.GetBool("cache") || cfg.OntologyCacheEnabled {
		opts.Cache = database.GetRedis()
	}
	return opts
}

func main() {
	mainCmd.AddCommand(runCmd)
	mainCmd.AddCommand(validateCmd)
	mainCmd.AddCommand(versionCmd)

	if err := mainCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
