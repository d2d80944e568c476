package postgres

import (
	"context"
	"fmt"
)

// PinnedSiteRepository stores the ordered list of sites a user keeps pinned.
type PinnedSiteRepository struct {
	pool *Pool
}

func NewPinnedSiteRepository(pool *Pool) *PinnedSiteRepository {
	return &PinnedSiteRepository{pool: pool}
}

// List returns the user's pinned site ids in their saved order.
func (r *PinnedSiteRepository) List(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT site_id FROM pinned_sites WHERE user_id = $1 ORDER BY position, site_id", userID)
	if err != nil {
		return nil, fmt.Errorf("list pinned sites: %w", err)
	}
	defer rows.Close()

	sites := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pinned site: %w", err)
		}
		sites = append(sites, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pinned sites: %w", err)
	}
	return sites, nil
}

// Replace swaps the user's pinned list for siteIDs in a single transaction.
// Duplicate ids keep their first position.
func (r *PinnedSiteRepository) Replace(ctx context.Context, userID string, siteIDs []string) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM pinned_sites WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("clear pinned sites: %w", err)
	}

	seen := make(map[string]bool, len(siteIDs))
	position := 0
	for _, id := range siteIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pinned_sites (user_id, site_id, position) VALUES ($1, $2, $3)",
			userID, id, position,
		); err != nil {
			return fmt.Errorf("insert pinned site %s: %w", id, err)
		}
		position++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pinned sites: %w", err)
	}
	return nil
}
