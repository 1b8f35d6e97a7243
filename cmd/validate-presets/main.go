package main

import (
	"fmt"
	"os"

	"github.com/blockedby/teamsheet/internal/dispatcher"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed = true
			continue
		}

		catalog, err := dispatcher.ParsePresets(data)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed = true
			continue
		}

		problems := catalog.Problems()
		for _, p := range problems {
			fmt.Printf("FAIL %s: %s\n", path, p)
		}
		if len(problems) > 0 {
			failed = true
			continue
		}
		fmt.Printf("ok   %s (%d presets)\n", path, len(catalog.List()))
	}

	if failed {
		os.Exit(1)
	}
}
