// migrate applies the embedded token store and device registry schema; go run ./cmd/migrate -direction up|down|version.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/config"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up, down or version")
	flag.Parse()

	cfg, err := config.LoadWorker()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if *direction == "version" {
		v, dirty, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		fmt.Printf("version %d dirty=%t\n", v, dirty)
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
