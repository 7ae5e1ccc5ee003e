package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/hamed0406/pingmonitor/internal/config"
)

// Adds one target to the target file. A running monitor picks the change up
// on its next reconciliation.
func main() {
	path := os.Getenv("TARGETS_FILE")
	if path == "" {
		path = "targets.yaml"
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter a host to ping or a URL to fetch (e.g., example.com or https://example.com): ")
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if raw == "" {
		fmt.Println("Nothing entered.")
		return
	}

	rec := config.TargetRecord{ID: raw}
	if strings.Contains(raw, "://") {
		rec.Kind = "http"
	}

	f, err := config.LoadTargetsFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		f, err = &config.TargetsFile{}, nil
	}
	if err != nil {
		fmt.Println("Error reading target file:", err)
		return
	}
	for _, t := range f.Targets {
		if strings.TrimSpace(t.ID) == raw {
			fmt.Println("Already monitored.")
			return
		}
	}
	f.Targets = append(f.Targets, rec)

	if err := config.SaveTargets(path, f); err != nil {
		fmt.Println("Invalid target:", err)
		return
	}
	fmt.Printf("Added %s to %s. Check GET /api/targets once the monitor reconciles.\n", raw, path)
}
