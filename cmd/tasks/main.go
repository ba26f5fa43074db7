package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/grexie/confidential-defi/pkg/app"
	"github.com/grexie/confidential-defi/pkg/config"
	"github.com/grexie/confidential-defi/pkg/tasks"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if err := tasks.NewRunner(a, os.Stdout, os.Stderr).Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		a.Close()
		os.Exit(1)
	}
}
