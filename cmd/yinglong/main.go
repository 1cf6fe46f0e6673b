// Command yinglong type-checks hardware circuits and lowers them to Verilog.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/yinglong/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// Commands report their own failures; only usage errors reach here
		// unprinted.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
