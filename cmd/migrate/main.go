package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/checkout/internal/storage/postgres"
)

// migrate управляет схемой БД чекаута:
//
//	migrate [flags] up      применить недостающие миграции
//	migrate [flags] down    откатить миграции (-steps, по умолчанию 1)
//	migrate [flags] status  показать текущую версию схемы
func main() {
	var (
		steps = flag.Int("steps", 0, "сколько миграций применить/откатить (0 = все для up, 1 для down)")
		dsn   = flag.String("dsn", "", "PostgreSQL DSN (по умолчанию CHECKOUT_POSTGRES_DSN)")
	)
	flag.Parse()

	command := strings.ToLower(flag.Arg(0))
	if command == "" {
		command = "up"
	}

	_ = godotenv.Load()

	target := strings.TrimSpace(*dsn)
	if target == "" {
		target = strings.TrimSpace(os.Getenv("CHECKOUT_POSTGRES_DSN"))
	}
	if target == "" {
		fail("не задан DSN: укажите -dsn или CHECKOUT_POSTGRES_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.Open(ctx, target)
	if err != nil {
		fail("подключение к postgres: %v", err)
	}
	defer store.Close()

	switch command {
	case "up":
		if err := store.MigrateUp(ctx, *steps); err != nil {
			fail("migrate up: %v", err)
		}
		report(ctx, store, "migrate up ok")
	case "down":
		if err := store.MigrateDown(ctx, *steps); err != nil {
			fail("migrate down: %v", err)
		}
		report(ctx, store, "migrate down ok")
	case "status":
		report(ctx, store, "schema status")
	default:
		fail("неизвестная команда %q (ожидается up, down или status)", command)
	}
}

func report(ctx context.Context, store *postgres.Store, prefix string) {
	version, applied, err := store.MigrationStatus(ctx)
	if err != nil {
		fail("статус миграций: %v", err)
	}
	fmt.Printf("%s: version=%d applied=%d\n", prefix, version, applied)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
