package store

import (
	"database/sql"
	"log"

	"github.com/pressly/goose/v3"
	assets "github.com/sitepipe/sitepipe"
)

func RunMigrations(db *sql.DB, dir string) {
	goose.SetBaseFS(assets.MigrationsFS)
	if err := goose.SetDialect("sqlite"); err != nil {
		log.Fatal(err)
	}
	if err := goose.Up(db, dir); err != nil {
		log.Fatal(err)
	}
}
