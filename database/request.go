package database

import (
	"database/sql"
	"time"

	"github.com/kindred-ai/kindred-api/model"
)

// GetSetting fetches a single application setting by key
func (s *PostgreSQLStore) GetSetting(key string) (*model.AppSetting, error) {
	query := `
		SELECT id, key, value, type, description, is_public, category, created_at, updated_at
		FROM app_settings WHERE key = $1;
	`
	rows, err := s.db.Query(query, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}
	return scanIntoSetting(rows)
}

// ListSettings returns all settings in a category, or all settings when
// category is empty
func (s *PostgreSQLStore) ListSettings(category string) ([]model.AppSetting, error) {
	query := `
		SELECT id, key, value, type, description, is_public, category, created_at, updated_at
		FROM app_settings WHERE ($1 = '' OR category = $1) ORDER BY key;
	`
	rows, err := s.db.Query(query, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := []model.AppSetting{}
	for rows.Next() {
		setting, err := scanIntoSetting(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, *setting)
	}
	return settings, rows.Err()
}

// SetSetting inserts or updates a setting value
func (s *PostgreSQLStore) SetSetting(key, value string) error {
	query := `
		INSERT INTO app_settings(key, value, created_at, updated_at)
		VALUES($1, $2, $3, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3;
	`
	_, err := s.db.Exec(query, key, value, time.Now())
	return err
}

// DeleteSetting removes a setting by key
func (s *PostgreSQLStore) DeleteSetting(key string) error {
	_, err := s.db.Exec("DELETE FROM app_settings WHERE key = $1", key)
	return err
}

func scanIntoSetting(rows *sql.Rows) (*model.AppSetting, error) {
	setting := new(model.AppSetting)
	err := rows.Scan(
		&setting.ID,
		&setting.Key,
		&setting.Value,
		&setting.Type,
		&setting.Description,
		&setting.IsPublic,
		&setting.Category,
		&setting.CreatedAt,
		&setting.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return setting, nil
}
