// CLI tool to expire overdue pending adaptation events across all users.
// The API applies the same expiry lazily on read; this tool exists so
// accounts nobody visits also converge, e.g. from a nightly cron.
// Usage: go run ./cmd/expire-events (from the repo root)
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, os.Getenv("DB_URL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	tag, err := conn.Exec(ctx, `
		UPDATE adaptation_events
		   SET status = 'expired', resolved_at = now()
		 WHERE status = 'pending' AND expires_at <= now()`)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error expiring events: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d pending event(s) expired.\n", tag.RowsAffected())
}
