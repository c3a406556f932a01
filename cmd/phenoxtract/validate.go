package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/synaptica-ai/phenoxtract/pkg/common/database"
	"github.com/synaptica-ai/phenoxtract/pkg/pipeline"
)

var validateCmd = &cobra.Command{
	Use: "validate <manifest>",

	Short: "Checks a manifest against its data without writing any output.",

	Long: `Loads the manifest, opens every resource, binds and transforms every table
and collects records, then prints the issues found. Nothing is loaded.`,

	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			cmd.Usage()
			os.Exit(1)
		}
		defer database.CloseRedis()

		res, err := pipeline.RunFile(context.Background(), args[0], pipeline.Options{
			Ontology: ontologyOptions(),
			DryRun:   true,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		printReport(os.Stdout, res, viper.GetInt("validate.max-issues"))
		if res.Report.Len() > 0 {
			os.Exit(exitDataIssues)
		}
	},
}

func init() {
	flags := validateCmd.Flags()

	flags.Int("max-issues", 0, "Maximum number of issues listed; 0 lists all.")

	viper.BindPFlag("validate.max-issues", flags.Lookup("max-issues"))
}
