package main

import (
	"fmt"
	"os"

	"github.com/patrickwarner/adreward/internal/config"
)

func main() {
	cfg := config.Load()

	app := newApp(cfg, os.Stdin, os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "adreward: %v\n", err)
		os.Exit(1)
	}
}
