package main

import (
	"fmt"
	"os"

	"github.com/landrecords/portal/cmd/landctl/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
