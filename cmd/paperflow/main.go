// Command paperflow runs one auto-approved paper search from the command
// line and prints the Markdown report.
//
// Usage:
//
//	paperflow <query words...>
//
// Configuration comes from the environment (see config); at minimum
// SERPAPI_API_KEY and a model API key must be set.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/paperflow/config"
	"github.com/dshills/paperflow/export"
	"github.com/dshills/paperflow/workflow"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: paperflow <query words...>")
		os.Exit(1)
	}
	query := strings.Join(os.Args[1:], " ")

	if err := run(query); err != nil {
		fmt.Fprintln(os.Stderr, "paperflow:", err)
		os.Exit(1)
	}
}

func run(query string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := workflow.FromConfig(ctx, cfg,
		workflow.WithProgress(func(phase workflow.Phase, details string) {
			if details != "" {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", phase, details)
			} else {
				fmt.Fprintf(os.Stderr, "[%s]\n", phase)
			}
		}),
	)
	if err != nil {
		return err
	}

	coll, err := eng.Run(ctx, query)
	if err != nil {
		return err
	}

	fmt.Print(export.Markdown(coll))
	return nil
}
