package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/resource-booking-backend/internal/db"
)

type Repository interface {
	Create(ctx context.Context, res *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	// ListByIDs returns the resources in the order of ids. Unknown ids are an error.
	ListByIDs(ctx context.Context, ids []string) ([]*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, res *Resource) error {
	const query = `
		INSERT INTO public.resources (name, type, calendar_id, user_id)
		VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, ''))
		RETURNING id, created_at
	`
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, res.Name, string(res.Type), res.CalendarID, res.UserID).
		Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	const query = `
		SELECT id, name, type, COALESCE(calendar_id::text, ''), COALESCE(user_id, ''), created_at
		FROM public.resources
		WHERE id = $1
	`
	row := db.Conn(ctx, r.pool).QueryRow(ctx, query, id)

	var res Resource
	if err := row.Scan(&res.ID, &res.Name, &res.Type, &res.CalendarID, &res.UserID, &res.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource failed: %w", err)
	}
	return &res, nil
}

func (r *pgxRepository) ListByIDs(ctx context.Context, ids []string) ([]*Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		SELECT id, name, type, COALESCE(calendar_id::text, ''), COALESCE(user_id, ''), created_at
		FROM public.resources
		WHERE id = ANY($1::uuid[])
	`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list resources by id failed: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Resource, len(ids))
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.Name, &res.Type, &res.CalendarID, &res.UserID, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resource failed: %w", err)
		}
		byID[res.ID] = &res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources failed: %w", err)
	}

	out := make([]*Resource, 0, len(ids))
	for _, id := range ids {
		res, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("resource %s: %w", id, ErrNotFound)
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	var args []interface{}
	queryBase := `
		SELECT id, name, type, COALESCE(calendar_id::text, ''), COALESCE(user_id, ''), created_at,
		       count(*) OVER() as total_count
		FROM public.resources
		WHERE 1=1
	`
	paramIndex := 1

	if filter.Type != "" {
		queryBase += fmt.Sprintf(" AND type = $%d", paramIndex)
		args = append(args, string(filter.Type))
		paramIndex++
	}
	if filter.CalendarID != "" {
		queryBase += fmt.Sprintf(" AND calendar_id = $%d", paramIndex)
		args = append(args, filter.CalendarID)
		paramIndex++
	}

	order := "DESC"
	if filter.SortOrder == "ASC" {
		order = "ASC"
	}
	queryBase += " ORDER BY created_at " + order

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	queryBase += fmt.Sprintf(" LIMIT $%d OFFSET $%d", paramIndex, paramIndex+1)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := db.Conn(ctx, r.pool).Query(ctx, queryBase, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}
	defer rows.Close()

	var (
		resources []*Resource
		total     int
	)
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.Name, &res.Type, &res.CalendarID, &res.UserID, &res.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan resource failed: %w", err)
		}
		resources = append(resources, &res)
	}
	return resources, total, rows.Err()
}
