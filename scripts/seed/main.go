package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/staydesk/staydesk/internal/app"
	"github.com/staydesk/staydesk/internal/bookings"
	"github.com/staydesk/staydesk/internal/platform/cache"
	"github.com/staydesk/staydesk/internal/platform/db"
	platformmongo "github.com/staydesk/staydesk/internal/platform/mongo"
)

func main() {
	days := flag.Int("days", 120, "days of history ending today")
	perDay := flag.Int("per-day", 12, "maximum bookings per day")
	properties := flag.String("properties", "lagoon-resort,harbor-inn,summit-lodge", "comma separated property ids")
	seed := flag.Uint64("seed", 2025, "random seed")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("load timezone: %v", err)
	}
	today := time.Now().In(loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(*days - 1))

	records := bookings.GenerateSample(bookings.SampleOptions{
		Properties: splitList(*properties),
		Start:      start,
		Days:       *days,
		PerDay:     *perDay,
		Seed:       *seed,
	})
	fmt.Printf("→ Generated %d bookings from %s\n", len(records), start.Format("2006-01-02"))

	switch cfg.RecordStore {
	case app.StoreMongo:
		client, err := platformmongo.Connect(ctx, cfg.MongoURI, platformmongo.DefaultOptions())
		if err != nil {
			log.Fatalf("connect mongo: %v", err)
		}
		defer func() { _ = platformmongo.Disconnect(client, 5*time.Second) }()
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		if err := coll.Drop(ctx); err != nil {
			log.Fatalf("drop collection: %v", err)
		}
		n, err := bookings.InsertToMongo(ctx, coll, records)
		if err != nil {
			log.Fatalf("insert bookings: %v", err)
		}
		fmt.Printf("→ Inserted %d documents into %s.%s\n", n, cfg.MongoDatabase, cfg.MongoCollection)
	default:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if _, err := pool.Exec(ctx, bookings.PostgresSchema); err != nil {
			log.Fatalf("create schema: %v", err)
		}
		if _, err := pool.Exec(ctx, "TRUNCATE bookings"); err != nil {
			log.Fatalf("truncate bookings: %v", err)
		}
		n, err := bookings.CopyToPostgres(ctx, pool, records)
		if err != nil {
			log.Fatalf("copy bookings: %v", err)
		}
		fmt.Printf("→ Copied %d rows into bookings\n", n)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		fmt.Printf("! Skipping cache bump: %v\n", err)
		_ = redisClient.Close()
	} else {
		defer redisClient.Close()
		version, err := bookings.NewCache(redisClient, cfg.RecordCacheTTL).Bump(ctx)
		if err != nil {
			log.Fatalf("bump record cache: %v", err)
		}
		fmt.Printf("→ Record cache version %d\n", version)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
