package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/repository/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.yaml")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [-config file] up|down|version\n")
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	status, err := postgres.Migrate(cfg.Database.URL, command)
	if err != nil {
		log.Fatal(err)
	}
	out, _ := json.Marshal(status)
	fmt.Println(string(out))
}
