package database

import (
	"log"
)

func (s *PostgreSQLStore) Initialize() error {
	// Settings table must exist before any override is written; the rest of
	// the schema is owned by GORM AutoMigrate
	log.Println("Initializing PostgresSQL Database.", "Initializing Tables")
	if err := s.InitTables(); err != nil {
		return err
	}
	return nil
}

func (s *PostgreSQLStore) InitTables() error {
	app_settings_table := `
	CREATE TABLE IF NOT EXISTS app_settings (
		id BIGINT PRIMARY KEY GENERATED ALWAYS AS IDENTITY,
		key VARCHAR(255) NOT NULL UNIQUE,
		value TEXT,
		type VARCHAR(50) DEFAULT 'string',
		description TEXT,
		is_public BOOLEAN DEFAULT false,
		category VARCHAR(100),
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);
	`

	_, err := s.db.Exec(app_settings_table)
	return err
}
