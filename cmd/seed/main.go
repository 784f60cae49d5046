// seed inserts development sample subjects for local testing.
// Idempotent: skips inserts if the dev subject already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"viatransfer/auth-service/internal/config"
	"viatransfer/auth-service/internal/db"
	"viatransfer/auth-service/internal/user/domain"
	"viatransfer/auth-service/internal/user/repository"
)

const (
	devSubjectID      = "dev-subject-001"
	devSubjectEmail   = "dev@example.com"
	disabledSubjectID = "dev-subject-002"
	disabledEmail     = "disabled@example.com"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	subjects := repository.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := subjects.GetByID(ctx, devSubjectID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev subject exists). Skipping.")
		os.Exit(0)
	}

	now := time.Now().UTC()

	if err := subjects.Create(ctx, &domain.Subject{
		ID:        devSubjectID,
		Email:     devSubjectEmail,
		Role:      "traveler",
		Status:    domain.SubjectStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("create dev subject: %v", err)
	}

	if err := subjects.Create(ctx, &domain.Subject{
		ID:        disabledSubjectID,
		Email:     disabledEmail,
		Role:      "traveler",
		Status:    domain.SubjectStatusDisabled,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("create disabled subject: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev subject: %s (%s)\n", devSubjectID, devSubjectEmail)
	fmt.Printf("Disabled subject: %s (%s)\n", disabledSubjectID, disabledEmail)
}
