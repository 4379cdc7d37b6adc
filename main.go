package main

import (
	"os"

	"github.com/atomxw/sandboxd/cmd"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	if version != "" {
		cmd.BuildVersion = version
	}
	if commit != "" {
		cmd.BuildCommit = commit
	}
	if date != "" {
		cmd.BuildDate = date
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
