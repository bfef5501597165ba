package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kindred-ai/kindred-api/model"
	"github.com/kindred-ai/kindred-api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	if err := s.SeedBootstrapUser(); err != nil {
		return fmt.Errorf("failed to seed bootstrap user: %w", err)
	}

	if err := s.SeedAppSettings(); err != nil {
		return fmt.Errorf("failed to seed app settings: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedBootstrapUser creates the initial user from environment credentials
func (s *Seeder) SeedBootstrapUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Users already exist, skipping bootstrap user...")
		return nil
	}

	bootstrapEmail := os.Getenv("BOOTSTRAP_EMAIL")
	bootstrapPassword := os.Getenv("BOOTSTRAP_PASSWORD")

	if bootstrapEmail == "" || bootstrapPassword == "" {
		log.Println("⚠️  BOOTSTRAP_EMAIL and BOOTSTRAP_PASSWORD environment variables not set, skipping bootstrap user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(bootstrapPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:        bootstrapEmail,
		PasswordHash: passwordHash,
		Name:         "Kindred Admin",
		TokenVersion: 0,
	}

	if err := s.db.Create(user).Error; err != nil {
		return err
	}

	log.Printf("✅ Created bootstrap user: %s\n", user.Email)
	return nil
}

// SeedAppSettings creates default application settings
func (s *Seeder) SeedAppSettings() error {
	var count int64
	if err := s.db.Model(&model.AppSetting{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  App settings already exist, skipping...")
		return nil
	}

	now := time.Now()
	settings := []model.AppSetting{
		// System Information
		{
			Key:         "system.name",
			Value:       "Kindred",
			Type:        "string",
			Description: "Application name",
			IsPublic:    true,
			Category:    "system",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "system.version",
			Value:       "1.0.0",
			Type:        "string",
			Description: "Current application version",
			IsPublic:    true,
			Category:    "system",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "system.maintenance_mode",
			Value:       "false",
			Type:        "bool",
			Description: "Enable maintenance mode to restrict access",
			IsPublic:    true,
			Category:    "system",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// Feature Flags
		{
			Key:         "feature.registration_enabled",
			Value:       "true",
			Type:        "bool",
			Description: "Allow new user registrations",
			IsPublic:    true,
			Category:    "feature",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "feature.chat_enabled",
			Value:       "true",
			Type:        "bool",
			Description: "Enable the plain chat surface",
			IsPublic:    true,
			Category:    "feature",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "feature.attachment_upload_enabled",
			Value:       "true",
			Type:        "bool",
			Description: "Enable chat attachment uploads",
			IsPublic:    true,
			Category:    "feature",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// Agent limits
		{
			Key:         "agent.max_batch_messages",
			Value:       "20",
			Type:        "int",
			Description: "Maximum messages allowed in one batch send",
			IsPublic:    true,
			Category:    "agent",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "agent.max_message_length",
			Value:       "5000",
			Type:        "int",
			Description: "Maximum characters per batched message",
			IsPublic:    true,
			Category:    "agent",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// File Upload Limits
		{
			Key:         "upload.max_file_size_mb",
			Value:       "10",
			Type:        "int",
			Description: "Maximum file size for uploads in MB",
			IsPublic:    true,
			Category:    "upload",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "upload.allowed_extensions",
			Value:       "pdf,txt,md,png,jpg,jpeg,gif,webp",
			Type:        "string",
			Description: "Comma-separated list of allowed file extensions",
			IsPublic:    true,
			Category:    "upload",
			CreatedAt:   now,
			UpdatedAt:   now,
		},

		// Security Settings
		{
			Key:         "security.password_min_length",
			Value:       "8",
			Type:        "int",
			Description: "Minimum password length",
			IsPublic:    true,
			Category:    "security",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "security.jwt_expiry_hours",
			Value:       "24",
			Type:        "int",
			Description: "JWT token expiry time in hours",
			IsPublic:    false,
			Category:    "security",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "security.max_login_attempts",
			Value:       "5",
			Type:        "int",
			Description: "Maximum failed login attempts before lockout",
			IsPublic:    false,
			Category:    "security",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			Key:         "security.lockout_duration_minutes",
			Value:       "15",
			Type:        "int",
			Description: "Account lockout duration after max failed attempts",
			IsPublic:    false,
			Category:    "security",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	if err := s.db.Create(&settings).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d app settings\n", len(settings))
	return nil
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
