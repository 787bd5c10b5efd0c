package main

import (
	"fmt"
	"os"

	"mazegame/server/internal/config"
	"mazegame/server/internal/supervisor"
)

func main() {
	cfg, help, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, config.Usage())
		os.Exit(1)
	}
	if help {
		fmt.Println(config.Usage())
		return
	}

	sup, err := supervisor.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		os.Exit(1)
	}

	os.Exit(sup.Run())
}
