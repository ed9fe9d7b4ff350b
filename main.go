package main

import (
	"os"

	"github.com/adalundhe/meshsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
