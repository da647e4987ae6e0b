package main

import (
	"os"

	"github.com/gastondana627/orielfx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
