// Package main boots the medialens pipeline binary.
package main

import (
	"fmt"
	"os"

	"github.com/medialens/medialens/cmd/medialens/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
