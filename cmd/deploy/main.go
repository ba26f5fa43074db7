package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/grexie/confidential-defi/pkg/app"
	"github.com/grexie/confidential-defi/pkg/config"
	"github.com/grexie/confidential-defi/pkg/deploy"
)

func main() {
	tags := flag.String("tags", "", "comma separated deployment tags, all scripts when empty")
	list := flag.Bool("list", false, "list the known tags and exit")
	flag.Parse()

	runner := deploy.NewRunner(nil, deploy.DefaultScripts()...)
	if *list {
		fmt.Println(strings.Join(runner.Tags(), "\n"))
		return
	}

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

	selected := []string{}
	for _, t := range strings.Split(*tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			selected = append(selected, t)
		}
	}

	if env, err := a.DeployEnv(ctx); err != nil {
		log.Fatal(err)
	} else if ran, err := deploy.NewRunner(a.Storage, deploy.DefaultScripts()...).Run(ctx, env, selected...); err != nil {
		a.Close()
		log.Fatal(err)
	} else {
		log.Printf("🚀 deployed to %s, ran %d script(s): %s", a.Network.Name, len(ran), strings.Join(ran, ", "))
		if len(ran) == 0 {
			fmt.Fprintln(os.Stderr, "nothing to deploy, every selected script has already run")
		}
	}
}
