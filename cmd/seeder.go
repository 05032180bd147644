package cmd

import (
	"fmt"
	"log"

	"github.com/derheim/helpdesk/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample users for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := gorm.Open(postgres.Open(cfg.Database.Source), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open db: %v", err)
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		seedUsers := []struct {
			Email string
			Name  string
			Role  string
		}{
			{"admin@derheim.example", "Support Admin", auth.RoleAdmin},
			{"agent@derheim.example", "Support Agent", auth.RoleAgent},
			{"employee@derheim.example", "Sample Employee", auth.RoleEmployee},
		}

		for _, u := range seedUsers {
			var exists int
			row := db.Raw("SELECT 1 FROM users WHERE email = ?", u.Email).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Printf("user %s already exists, skipping\n", u.Email)
				continue
			}

			if err := db.Exec(
				"INSERT INTO users (email, full_name, role, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, now(), now())",
				u.Email, u.Name, u.Role, string(hash),
			).Error; err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			fmt.Printf("seeded %s user: %s\n", u.Role, u.Email)
		}
	},
}
