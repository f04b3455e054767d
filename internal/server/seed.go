package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/standgames/stand/internal/catalog"
	"github.com/standgames/stand/internal/stand"
)

// SeedAdmin creates the first admin account from config credentials.
// Idempotent: does nothing if any admin exists.
func SeedAdmin(ctx context.Context, logger *slog.Logger, db *sql.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO admins (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, newID(), email, string(hash), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	logger.Info("seeded initial admin", "email", email)
	return nil
}

// SeedCatalog installs the default pairing catalog if it is empty.
func SeedCatalog(ctx context.Context, logger *slog.Logger, cat *catalog.Service) error {
	existing, err := cat.Characters(ctx, catalog.DefaultCatalogID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	pairs := [][2]string{
		{"Romeo", "Julieta"},
		{"Batman", "Robin"},
		{"Mario", "Luigi"},
		{"Tom", "Jerry"},
		{"Aladdín", "Jasmín"},
		{"Shrek", "Fiona"},
	}

	items := make([]stand.Character, 0, len(pairs)*2)
	id := 1
	for i, pair := range pairs {
		for _, name := range pair {
			items = append(items, stand.Character{
				PairID:        fmt.Sprintf("P%d", i+1),
				CharacterID:   id,
				CharacterName: name,
			})
			id++
		}
	}

	if err := cat.Replace(ctx, catalog.DefaultCatalogID, items); err != nil {
		return err
	}
	logger.Info("seeded default pairing catalog", "characters", len(items))
	return nil
}
