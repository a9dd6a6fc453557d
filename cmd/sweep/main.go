package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/service/sweeper"
	"github.com/vladislavdragonenkov/checkout/internal/storage/postgres"
)

// Одноразовый запуск sweeper-а: снимает просроченные резервы купонов
// и завершается. Удобен для cron и ручной эксплуатации.
func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: CHECKOUT_POSTGRES_DSN)")
	flag.Parse()

	_ = godotenv.Load()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("CHECKOUT_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("CHECKOUT_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	ledger := postgres.NewReservationLedger(store)
	worker := sweeper.NewWorker(ledger, sweeper.WithLogger(log.WithField("component", "sweeper")))

	swept, err := worker.SweepOnce(time.Now().UTC())
	if err != nil {
		fail("sweep failed: %v", err)
	}

	fmt.Printf("sweep ok: expired=%d\n", swept)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
