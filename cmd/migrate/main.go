package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"forward_bot/migrations"
)

const usage = `Usage: migrate [-db path] <command>

Commands:
  up        Apply all pending migrations
  up-one    Apply the next pending migration
  down      Roll back the last migration
  status    Print migration status
  version   Print the current schema version
  reset     Roll back all migrations
`

func main() {
	defaultPath := os.Getenv("DATABASE_PATH")
	if defaultPath == "" {
		defaultPath = "./data/bot.db"
	}
	dbPath := flag.String("db", defaultPath, "path to the sqlite database")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		err = goose.Up(db, ".")
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	default:
		log.Fatalf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
