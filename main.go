// Package main is the entry point for the parsim header parser model.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/parsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
