// seed-admin creates or updates the back-office admin user.
//
// Usage:
//
//	ADMIN_EMAIL=... ADMIN_PASSWORD=... DB_USER=... DB_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/models"
	"github.com/myjantes/atelier_backend/utils"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_EMAIL and ADMIN_PASSWORD are required")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Email:        email,
			FirstName:    "Admin",
			LastName:     "MyJantes",
			PasswordHash: string(hashed),
			IsAdmin:      true,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %s (id=%d)\n", email, u.ID)
		return
	}

	err = db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"PasswordHash": string(hashed),
		"IsAdmin":      true,
	}).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("updated admin user %s (id=%d)\n", email, existing.ID)
}
