package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/synaptica-ai/phenoxtract/pkg/common/database"
	"github.com/synaptica-ai/phenoxtract/pkg/loader"
	"github.com/synaptica-ai/phenoxtract/pkg/pipeline"
)

const exitDataIssues = 2

var runCmd = &cobra.Command{
	Use: "run <manifest>",

	Short: "Runs an extraction and writes phenopackets to the configured loaders.",

	Example: `
  phenoxtract run cohorts/epilepsy.yaml
  phenoxtract run --out ./packets --strict cohorts/epilepsy.yaml`,

	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			cmd.Usage()
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		defer database.CloseRedis()

		opts := pipeline.Options{Ontology: ontologyOptions()}
		if out := viper.GetString("run.out"); out != "" {
			opts.Loader = loader.NewFileSystem(out, true)
		}

		res, err := pipeline.RunFile(ctx, args[0], opts)
		if res != nil {
			printReport(os.Stdout, res, viper.GetInt("run.max-issues"))
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if viper.GetBool("run.strict") && res.Report.Len() > 0 {
			os.Exit(exitDataIssues)
		}
	},
}

func init() {
	flags := runCmd.Flags()

	flags.String("out", "", "Write phenopackets to this directory instead of the manifest's loaders.")
	flags.Bool("strict", false, "Exit with status 2 when any data issue was reported.")
	flags.Int("max-issues", 50, "Maximum number of issues listed in the report; 0 lists all.")

	viper.BindPFlag("run.out", flags.Lookup("out"))
	viper.BindPFlag("run.strict", flags.Lookup("strict"))
	viper.BindPFlag("run.max-issues", flags.Lookup("max-issues"))
}
