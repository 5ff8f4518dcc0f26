package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/contactscan/internal/engine"
	"github.com/nao1215/contactscan/internal/model"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// LookupRecord is a stored lookup.
type LookupRecord struct {
	ID int64 `json:"id"`
	engine.Lookup
}

// LookupFilter narrows ListLookups. Zero values match everything.
type LookupFilter struct {
	// Name matches the display name exactly.
	Name string

	// Website matches the website exactly.
	Website string

	// Since keeps lookups resolved at or after this time.
	Since time.Time

	// Limit caps the number of rows. Zero means no limit.
	Limit int
}

// Record stores one lookup. It implements engine.History.
func (cdb *ContactDB) Record(ctx context.Context, lookup engine.Lookup) error {
	resolvedAt := lookup.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = cdb.now()
	}

	query := `
	INSERT INTO lookups (name, website, instagram, email, track_link, source, pages_fetched, stop_reason, resolved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		lookup.Name,
		lookup.Record.Website,
		lookup.Record.Instagram,
		lookup.Record.Email,
		lookup.Record.TrackLink,
		string(lookup.Source),
		lookup.PagesFetched,
		lookup.StopReason,
		resolvedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lookup: %w", err)
	}
	return nil
}

// ListLookups returns stored lookups, newest first.
func (cdb *ContactDB) ListLookups(ctx context.Context, filter LookupFilter) ([]LookupRecord, error) {
	query := `
	SELECT id, name, website, instagram, email, track_link, source, pages_fetched, stop_reason, resolved_at
	FROM lookups
	WHERE 1=1
	`
	args := make([]any, 0)

	if filter.Name != "" {
		query += " AND name = ?"
		args = append(args, filter.Name)
	}
	if filter.Website != "" {
		query += " AND website = ?"
		args = append(args, filter.Website)
	}
	if !filter.Since.IsZero() {
		query += " AND resolved_at >= ?"
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	query += " ORDER BY resolved_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lookups: %w", err)
	}
	defer rows.Close()

	var results []LookupRecord
	for rows.Next() {
		rec, err := scanLookup(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// GetLookup returns the lookup with id, or nil when there is none.
func (cdb *ContactDB) GetLookup(ctx context.Context, id int64) (*LookupRecord, error) {
	query := `
	SELECT id, name, website, instagram, email, track_link, source, pages_fetched, stop_reason, resolved_at
	FROM lookups
	WHERE id = ?
	`

	rec, err := scanLookup(cdb.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLookup(row rowScanner) (LookupRecord, error) {
	var (
		rec        LookupRecord
		contact    model.ContactRecord
		source     string
		resolvedAt string
	)

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&contact.Website,
		&contact.Instagram,
		&contact.Email,
		&contact.TrackLink,
		&source,
		&rec.PagesFetched,
		&rec.StopReason,
		&resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return LookupRecord{}, err
	}
	if err != nil {
		return LookupRecord{}, fmt.Errorf("failed to scan lookup: %w", err)
	}

	rec.Record = contact
	rec.Source = engine.Source(source)
	rec.ResolvedAt = parseTimestamp(resolvedAt)
	return rec, nil
}
