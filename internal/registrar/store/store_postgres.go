package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"subreg/internal/registrar/models"
	"subreg/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the registrar tables if they do not exist. Called at
// startup and by the integration suite.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PostgresStore persists listings via database/sql over the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Find(ctx context.Context, label common.Hash) (*models.Listing, error) {
	var (
		name      string
		admin     string
		target    string
		price     string
		ratePpm   int32
		migrated  bool
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, administrator, migration_target, price::text,
		       referral_rate_ppm, migrated, updated_at
		FROM listings WHERE label = $1
	`, label.Hex()).Scan(&name, &admin, &target, &price, &ratePpm, &migrated, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find listing: %w", err)
	}
	if migrated {
		return nil, sentinel.ErrMigrated
	}

	priceInt, ok := new(big.Int).SetString(price, 10)
	if !ok {
		return nil, fmt.Errorf("malformed listing price %q", price)
	}
	return &models.Listing{
		Label:           label,
		Name:            name,
		Administrator:   common.HexToAddress(admin),
		MigrationTarget: common.HexToAddress(target),
		Price:           priceInt,
		ReferralRatePpm: uint32(ratePpm),
		UpdatedAt:       updatedAt,
	}, nil
}

func (s *PostgresStore) Save(ctx context.Context, listing *models.Listing) error {
	price := "0"
	if listing.Price != nil {
		price = listing.Price.String()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (label, name, administrator, migration_target,
		                      price, referral_rate_ppm, migrated, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, FALSE, now())
		ON CONFLICT (label) DO UPDATE SET
			name = EXCLUDED.name,
			administrator = EXCLUDED.administrator,
			migration_target = EXCLUDED.migration_target,
			price = EXCLUDED.price,
			referral_rate_ppm = EXCLUDED.referral_rate_ppm,
			updated_at = now()
		WHERE listings.migrated = FALSE
	`, listing.Label.Hex(), listing.Name, listing.Administrator.Hex(),
		listing.MigrationTarget.Hex(), price, int32(listing.ReferralRatePpm))
	if err != nil {
		return fmt.Errorf("save listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save listing rows: %w", err)
	}
	if affected == 0 {
		// Conflict arm declined the update: the row is a tombstone.
		return sentinel.ErrMigrated
	}
	return nil
}

func (s *PostgresStore) Migrate(ctx context.Context, label common.Hash) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE listings SET
			name = '',
			administrator = '0x0000000000000000000000000000000000000000',
			migration_target = '0x0000000000000000000000000000000000000000',
			price = 0,
			referral_rate_ppm = 0,
			migrated = TRUE,
			updated_at = now()
		WHERE label = $1 AND migrated = FALSE
	`, label.Hex())
	if err != nil {
		return fmt.Errorf("migrate listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("migrate listing rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrMigrated
	}
	return nil
}
