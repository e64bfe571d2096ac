package main

import (
	"fmt"
	"os"

	"attendly/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "attendly:", err)
		os.Exit(1)
	}
}
