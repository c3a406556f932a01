package main

import (
	"fmt"
	"os"

	"github.com/blang/semver"
	"github.com/spf13/cobra"
	"github.com/synaptica-ai/phenoxtract/pkg/common/config"
)

var (
	progVersion = semver.MustParse(config.Version)

	buildVersion string
)

var versionCmd = &cobra.Command{
	Use: "version",

	Short: "Prints the version of the program.",

	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "%s %s\n", config.ToolName, progVersion)
	},
}

func init() {
	if buildVersion != "" {
		progVersion.Build = []string{buildVersion}
	}
}
