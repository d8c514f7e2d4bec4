// Command rfengine serves the carrier-synchronization and
// cyclostationary-analysis engine over HTTP, backed by a sqlite annotation
// store and a directory of raw IQ capture files.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/api"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/config"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/db"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db", "annotations.db", "Path to the sqlite database")
	dataDir       = flag.String("data", "data", "Directory holding <capture>.iq sample files")
	migrationsDir = flag.String("migrations", "db/migrations", "Path to schema migrations")
	tuningPath    = flag.String("tuning", "", "Optional JSON tuning overrides")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("rfengine %s", version.String())

	tuning := config.DefaultTuningConfig()
	if *tuningPath != "" {
		overrides, err := config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		tuning.Merge(overrides)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	schemaVersion, dirty, err := database.MigrateVersion(*migrationsDir)
	if err != nil {
		log.Fatalf("failed to read migration version: %v", err)
	}
	log.Printf("database at %s (schema v%d, dirty=%v)", *dbPath, schemaVersion, dirty)

	source := iq.NewFileSource(*dataDir)
	server := api.NewServer(database, source, tuning)

	log.Printf("rfengine listening on %s (data dir %s)", *listen, *dataDir)
	if err := http.ListenAndServe(*listen, server.Routes()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
