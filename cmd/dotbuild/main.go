package main

import (
	"os"

	"github.com/oh-my-dot/dotbuild/internal/cli"
)

func main() {
	code := cli.Execute(os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
