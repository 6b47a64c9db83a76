package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "deskrelay",
		Short: "Support request relay between the chat widget and the support team",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
