package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charlesng35/vibefs/internal/daemon"
	"github.com/charlesng35/vibefs/pkg/logger"
)

// errReported marks failures whose message was already written; only the exit code remains.
var errReported = errors.New("command failed")

func main() {
	code := execute(context.Background(), newCLI(daemon.NewOSSpawner()), os.Args[1:], os.Stdout, os.Stderr)
	_ = logger.Sync()
	os.Exit(code)
}

func execute(ctx context.Context, c *cli, args []string, stdout, stderr io.Writer) int {
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}
