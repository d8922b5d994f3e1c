package combination

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/resource-booking-backend/internal/db"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Combination, error)
	// ListByIDs returns the combinations in the order of ids.
	ListByIDs(ctx context.Context, ids []string) ([]*Combination, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Combination, error) {
	list, err := r.ListByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

func (r *pgxRepository) ListByIDs(ctx context.Context, ids []string) ([]*Combination, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"c.id", "c.name", "COALESCE(c.forced_calendar_id::text, '')",
		"COALESCE(array_agg(cr.resource_id::text ORDER BY cr.resource_id) FILTER (WHERE cr.resource_id IS NOT NULL), '{}')",
	).
		From("public.combinations c").
		LeftJoin("public.combination_resources cr ON cr.combination_id = c.id").
		Where("c.id = ANY(?::uuid[])", ids).
		GroupBy("c.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list combinations query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list combinations failed: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Combination, len(ids))
	for rows.Next() {
		var c Combination
		if err := rows.Scan(&c.ID, &c.Name, &c.ForcedCalendarID, &c.ResourceIDs); err != nil {
			return nil, fmt.Errorf("scan combination failed: %w", err)
		}
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate combinations failed: %w", err)
	}

	out := make([]*Combination, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("combination %s: %w", id, ErrNotFound)
		}
		out = append(out, c)
	}
	return out, nil
}
