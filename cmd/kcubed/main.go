// cmd/kcubed/main.go
package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kcube/kcube/internal/daemon"
	"github.com/kcube/kcube/internal/worker"
)

func main() {
	configPath := os.Getenv("KCUBE_CONFIG_PATH")
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("determining home directory: %v", err)
		}
		configPath = filepath.Join(home, ".kcube", "daemon_config.json")
	}

	sup, err := daemon.New(configPath)
	if err != nil {
		log.Fatalf("loading config from %s: %v", configPath, err)
	}

	log.Printf("kcubed starting, config %s", configPath)
	sup.Start()
	defer sup.Shutdown()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev := <-sup.Events():
			logEvent(ev)
		case sig := <-sigs:
			log.Printf("received %s, shutting down", sig)
			return
		}
	}
}

func logEvent(ev worker.Event) {
	if ev.Err != nil {
		log.Printf("%s: %s: %v", ev.VaultPath, ev.Kind, ev.Err)
		return
	}
	log.Printf("%s: %s", ev.VaultPath, ev.Kind)
}
