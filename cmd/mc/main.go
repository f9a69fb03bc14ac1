// mc is the Mission Control CLI for driving parallel coding jobs and
// their merge train from a shell.
package main

import (
	"fmt"
	"os"

	"github.com/nigel-dev/opencode-mission-control/internal/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
