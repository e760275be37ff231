package main

import (
	"os"

	"github.com/JijoJohny/SolGuard/internal/app"
	"github.com/JijoJohny/SolGuard/internal/cli"
)

func main() {
	os.Exit(cli.ExitCode(app.BuildRoot().Execute()))
}
