package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:   "deepsignal",
		Short: "Tool-augmented deep analysis of crypto market events",
	}

	root.AddCommand(serveCMD(), analyzeCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
