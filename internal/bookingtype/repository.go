package bookingtype

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/resource-booking-backend/internal/db"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

type Repository interface {
	Create(ctx context.Context, bt *BookingType) error
	GetByID(ctx context.Context, id string) (*BookingType, error)
	List(ctx context.Context, filter Filter) ([]*BookingType, int, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var typeColumns = []string{
	"bt.id", "bt.name", "COALESCE(bt.calendar_id::text, '')", "bt.assignment",
	"bt.slot_duration_seconds", "bt.duration_seconds", "bt.location", "bt.videocall_location", "bt.created_at",
}

func scanType(row pgx.Row, extra ...any) (*BookingType, error) {
	var (
		bt              BookingType
		assignment      string
		slotSec, durSec int64
	)
	dest := append([]any{
		&bt.ID, &bt.Name, &bt.CalendarID, &assignment,
		&slotSec, &durSec, &bt.Location, &bt.VideocallLocation, &bt.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	bt.Assignment = scheduling.Policy(assignment)
	bt.SlotDuration = time.Duration(slotSec) * time.Second
	bt.Duration = time.Duration(durSec) * time.Second
	return &bt, nil
}

func (r *pgxRepository) Create(ctx context.Context, bt *BookingType) error {
	conn := db.Conn(ctx, r.pool)
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	var calendarID any
	if bt.CalendarID != "" {
		calendarID = bt.CalendarID
	}

	query, args, err := psql.Insert("public.booking_types").
		Columns("name", "calendar_id", "assignment", "slot_duration_seconds", "duration_seconds", "location", "videocall_location").
		Values(bt.Name, calendarID, string(bt.Assignment), int64(bt.SlotDuration/time.Second), int64(bt.Duration/time.Second), bt.Location, bt.VideocallLocation).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking type query failed: %w", err)
	}
	if err := conn.QueryRow(ctx, query, args...).Scan(&bt.ID, &bt.CreatedAt); err != nil {
		return fmt.Errorf("create booking type failed: %w", err)
	}

	if len(bt.Combinations) == 0 {
		return nil
	}
	insert := psql.Insert("public.booking_type_combinations").Columns("booking_type_id", "combination_id", "sequence")
	for _, rel := range bt.Combinations {
		insert = insert.Values(bt.ID, rel.CombinationID, rel.Sequence)
	}
	query, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert type combinations query failed: %w", err)
	}
	if _, err := conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert type combinations failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*BookingType, error) {
	conn := db.Conn(ctx, r.pool)
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select(typeColumns...).
		From("public.booking_types bt").
		Where(squirrel.Eq{"bt.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking type query failed: %w", err)
	}

	bt, err := scanType(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking type failed: %w", err)
	}

	query, args, err = psql.Select("combination_id", "sequence").
		From("public.booking_type_combinations").
		Where(squirrel.Eq{"booking_type_id": id}).
		OrderBy("sequence", "combination_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list type combinations query failed: %w", err)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list type combinations failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rel CombinationRel
		if err := rows.Scan(&rel.CombinationID, &rel.Sequence); err != nil {
			return nil, fmt.Errorf("scan type combination failed: %w", err)
		}
		bt.Combinations = append(bt.Combinations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type combinations failed: %w", err)
	}
	return bt, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*BookingType, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(typeColumns, "count(*) OVER() as total_count")...).
		From("public.booking_types bt")

	orderBy := "bt.created_at"
	if filter.SortBy == "name" {
		orderBy = "bt.name"
	}
	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy + " " + orderDir)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64((filter.Page - 1) * filter.PageSize))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list booking types query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list booking types failed: %w", err)
	}
	defer rows.Close()

	var (
		types []*BookingType
		total int
	)
	for rows.Next() {
		bt, err := scanType(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking type failed: %w", err)
		}
		types = append(types, bt)
	}
	return types, total, rows.Err()
}
