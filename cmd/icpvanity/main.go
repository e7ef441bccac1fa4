package main

import (
	"context"
	"os"

	"ICPVanity/internal/cli"
)

func main() {
	ctx := cli.WithInterrupt(context.Background())
	os.Exit(cli.NewRunner().Run(ctx, os.Args[1:]))
}
