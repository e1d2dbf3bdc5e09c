package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/carddex/internal/storage"
)

// PutCardDefinitions upserts the seeded card catalog. Re-seeding with a
// changed catalog overwrites display data in place.
func (s *Store) PutCardDefinitions(ctx context.Context, defs []storage.CardDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(defs) == 0 {
		return fmt.Errorf("at least one card definition is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put card definitions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, def := range defs {
		if strings.TrimSpace(def.ID) == "" {
			return fmt.Errorf("card definition id is required")
		}
		if strings.TrimSpace(def.Series) == "" {
			return fmt.Errorf("card definition series is required")
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO card_definitions (id, series, number, variant, tier, display_name)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   series = excluded.series,
			   number = excluded.number,
			   variant = excluded.variant,
			   tier = excluded.tier,
			   display_name = excluded.display_name`,
			def.ID,
			def.Series,
			def.Number,
			def.Variant,
			def.Tier,
			def.DisplayName,
		); err != nil {
			return fmt.Errorf("put card definition %s: %w", def.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put card definitions: %w", err)
	}
	return nil
}

// PutPuzzleDefinitions upserts the seeded puzzle catalog.
func (s *Store) PutPuzzleDefinitions(ctx context.Context, defs []storage.PuzzleDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(defs) == 0 {
		return fmt.Errorf("at least one puzzle definition is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put puzzle definitions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, def := range defs {
		if strings.TrimSpace(def.ID) == "" {
			return fmt.Errorf("puzzle definition id is required")
		}
		if def.Slots <= 0 {
			return fmt.Errorf("puzzle definition slots must be positive")
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO puzzle_definitions (id, series, display_name, slots)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   series = excluded.series,
			   display_name = excluded.display_name,
			   slots = excluded.slots`,
			def.ID,
			def.Series,
			def.DisplayName,
			def.Slots,
		); err != nil {
			return fmt.Errorf("put puzzle definition %s: %w", def.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put puzzle definitions: %w", err)
	}
	return nil
}

// CountCardDefinitions reports how many cards have been seeded.
func (s *Store) CountCardDefinitions(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM card_definitions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count card definitions: %w", err)
	}
	return count, nil
}
