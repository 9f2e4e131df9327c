package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"lokbazaar-backend/config"
	"lokbazaar-backend/pkg/helpers"
)

type demoUser struct {
	email    string
	password string
	name     string
	userType string
	language string
	phone    string
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dsn := cfg.PostgresDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	users := []demoUser{
		{
			email:    "asha.handlooms@lokbazaar.in",
			password: "vendor-pass-123",
			name:     "Asha Handlooms",
			userType: "VENDOR",
			language: "ta",
			phone:    "9876543210",
		},
		{
			email:    "rahul.sharma@lokbazaar.in",
			password: "buyer-pass-123",
			name:     "Rahul Sharma",
			userType: "BUYER",
			language: "hi",
			phone:    "9123456780",
		},
	}

	for _, u := range users {
		hash, err := helpers.HashPassword(u.password)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		var id string
		err = db.QueryRow(`
			INSERT INTO users (email, password_hash, name, user_type, preferred_language, phone_number, is_verified)
			VALUES ($1, $2, $3, $4, $5, $6, true)
			ON CONFLICT (email) DO UPDATE SET name=EXCLUDED.name, updated_at=now()
			RETURNING id
		`, u.email, hash, u.name, u.userType, u.language, u.phone).Scan(&id)
		if err != nil {
			log.Fatalf("failed to seed user %s: %v", u.email, err)
		}
		fmt.Printf("seeded %s: id=%s email=%s password=%s\n", u.userType, id, u.email, u.password)
	}
}
