package universe

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/karmyshunde-sudo/karmy-gold/internal/domain"
)

const dateLayout = "2006-01-02"

// CatalogueRepository stores the market-wide ETF catalogue
type CatalogueRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCatalogueRepository creates a new catalogue repository
func NewCatalogueRepository(db *sql.DB, log zerolog.Logger) *CatalogueRepository {
	return &CatalogueRepository{
		db:  db,
		log: log.With().Str("repo", "etf_catalogue").Logger(),
	}
}

// Upsert inserts or replaces entries in one transaction. Codes are
// canonicalised before writing.
func (r *CatalogueRepository) Upsert(entries []domain.CatalogueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO etf_catalogue
		(code, name, full_code, fund_size, listing_date, sector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			full_code = excluded.full_code,
			fund_size = excluded.fund_size,
			listing_date = excluded.listing_date,
			sector = excluded.sector,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare catalogue upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		code := domain.CanonicalCode(e.Code)
		fullCode := e.FullCode
		if fullCode == "" {
			fullCode = domain.FullCode(code)
		}

		var listing sql.NullString
		if !e.ListingDate.IsZero() {
			listing = sql.NullString{String: e.ListingDate.Format(dateLayout), Valid: true}
		}

		if _, err := stmt.Exec(code, e.Name, fullCode, e.FundSize, listing, e.Sector, e.UpdatedAt.Unix()); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalogue: %w", err)
	}

	r.log.Info().Int("count", len(entries)).Msg("Catalogue upserted")
	return nil
}

// GetAll returns every entry ordered by code
func (r *CatalogueRepository) GetAll() ([]domain.CatalogueEntry, error) {
	rows, err := r.db.Query(`SELECT code, name, full_code, fund_size, listing_date, sector, updated_at
	                         FROM etf_catalogue ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalogue: %w", err)
	}
	defer rows.Close()

	entries := []domain.CatalogueEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one entry or domain.ErrNotFound
func (r *CatalogueRepository) Get(code string) (domain.CatalogueEntry, error) {
	row := r.db.QueryRow(`SELECT code, name, full_code, fund_size, listing_date, sector, updated_at
	                      FROM etf_catalogue WHERE code = ?`, domain.CanonicalCode(code))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CatalogueEntry{}, domain.ErrNotFound
	}
	return e, err
}

// LastUpdated returns the newest updated_at, zero when the catalogue is empty
func (r *CatalogueRepository) LastUpdated() (time.Time, error) {
	var ts sql.NullInt64
	if err := r.db.QueryRow("SELECT MAX(updated_at) FROM etf_catalogue").Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to query catalogue age: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Stale reports whether the catalogue is empty or older than maxAge at now
func (r *CatalogueRepository) Stale(now time.Time, maxAge time.Duration) (bool, error) {
	last, err := r.LastUpdated()
	if err != nil {
		return false, err
	}
	return last.IsZero() || now.Sub(last) >= maxAge, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (domain.CatalogueEntry, error) {
	var e domain.CatalogueEntry
	var listing sql.NullString
	var updatedAt int64

	if err := s.Scan(&e.Code, &e.Name, &e.FullCode, &e.FundSize, &listing, &e.Sector, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan catalogue entry: %w", err)
	}

	if listing.Valid && listing.String != "" {
		if t, err := time.Parse(dateLayout, listing.String); err == nil {
			e.ListingDate = t
		}
	}
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return e, nil
}
