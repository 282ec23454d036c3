package main

import (
	"log"
	"os"
	"syscall"
	"time"
)

// Container entrypoint: fill in env defaults the platform may not inject,
// then exec the trackdesk binary in place.
func main() {
	if os.Getenv("PORT") == "" {
		_ = os.Setenv("PORT", "8080")
	}

	// STARTUP_DELAY holds the exec back while sibling containers (Postgres,
	// Redis) come up on hosts without ordered health checks.
	if delay := os.Getenv("STARTUP_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			log.Printf("Applying startup delay: %v", d)
			time.Sleep(d)
		}
	}

	target := os.Getenv("BACKEND_BINARY")
	if target == "" {
		target = "/app/main"
	}
	if err := syscall.Exec(target, []string{target}, os.Environ()); err != nil {
		log.Fatalf("failed to exec %s: %v", target, err)
	}
}
