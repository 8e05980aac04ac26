package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rick1330/Nexus-Framework/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}
