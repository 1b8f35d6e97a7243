// Command migrate applies or rolls back the postgres schema.
//
//	migrate up
//	migrate down [steps]
//	migrate version
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/blockedby/teamsheet/internal/config"
	"github.com/blockedby/teamsheet/internal/migrator"
	"github.com/blockedby/teamsheet/migrations"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("error: load config: %v\n", err)
		os.Exit(1)
	}

	m, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "up":
		err = m.Up(ctx, cfg.DatabaseURL)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil {
				fmt.Printf("error: invalid steps %q\n", os.Args[2])
				os.Exit(1)
			}
		}
		err = m.Down(ctx, cfg.DatabaseURL, steps)
	case "version":
		var v uint
		var dirty bool
		v, dirty, err = m.Version(ctx, cfg.DatabaseURL)
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		}
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}

func usage() {
	fmt.Println("usage: migrate up | down [steps] | version")
}
