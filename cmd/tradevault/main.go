package main

import (
	"os"

	"github.com/Dvl-es/tradevault/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
