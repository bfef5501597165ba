// Command settings manages app_settings rows directly against Postgres.
// It intentionally avoids the ORM so it can run against a database the
// API server has never migrated.
//
// Usage:
//
//	go run ./cmd/settings list [category]
//	go run ./cmd/settings get <key>
//	go run ./cmd/settings set <key> <value>
//	go run ./cmd/settings delete <key>
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kindred-ai/kindred-api/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if len(os.Args) < 2 {
		usage()
	}

	store, err := database.Start()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to initialize settings table: %v", err)
	}

	switch os.Args[1] {
	case "list":
		category := ""
		if len(os.Args) > 2 {
			category = os.Args[2]
		}
		settings, err := store.ListSettings(category)
		if err != nil {
			log.Fatalf("Failed to list settings: %v", err)
		}
		for _, s := range settings {
			fmt.Printf("%-45s %-12s %s\n", s.Key, s.Category, s.Value)
		}

	case "get":
		if len(os.Args) < 3 {
			usage()
		}
		setting, err := store.GetSetting(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to get setting: %v", err)
		}
		fmt.Println(setting.Value)

	case "set":
		if len(os.Args) < 4 {
			usage()
		}
		if err := store.SetSetting(os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("Failed to set setting: %v", err)
		}
		fmt.Printf("Set %s\n", os.Args[2])

	case "delete":
		if len(os.Args) < 3 {
			usage()
		}
		if err := store.DeleteSetting(os.Args[2]); err != nil {
			log.Fatalf("Failed to delete setting: %v", err)
		}
		fmt.Printf("Deleted %s\n", os.Args[2])

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: settings list [category] | get <key> | set <key> <value> | delete <key>")
	os.Exit(1)
}
