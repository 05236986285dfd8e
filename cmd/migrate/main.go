package main

import (
	"database/sql"
	"flag"
	"os"
	"path/filepath"
	"sort"

	"affiliate-platform/internal/config"
	"affiliate-platform/internal/logger"

	_ "github.com/lib/pq"
)

// Applies the hand-written SQL in migrations/ that AutoMigrate cannot express:
// stored procedures and partial indexes. Every file is idempotent.
func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	flag.Parse()

	cfg, err := config.LoadDatabase()
	if err != nil {
		logger.New("info", "text").Fatalf("Failed to load config: %v", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if cfg.Database.Driver == "sqlite" {
		log.Info("SQLite has no SQL migrations; nothing to do")
		return
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Info("Connected to database")

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		log.Fatalf("Failed to list migrations: %v", err)
	}
	sort.Strings(files)

	for _, file := range files {
		migrationSQL, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("Failed to read migration file %s: %v", file, err)
		}

		log.WithField("file", filepath.Base(file)).Info("Applying migration")
		if _, err := db.Exec(string(migrationSQL)); err != nil {
			log.Fatalf("Failed to apply %s: %v", file, err)
		}
	}

	log.WithField("count", len(files)).Info("Migrations applied")
}
