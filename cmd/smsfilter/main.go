package main

import (
	"os"

	"github.com/solatis/smsfilter/cmd/smsfilter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
