package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/resource-booking-backend/internal/db"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

type Repository interface {
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	// GetForUpdate reads the booking and row-locks it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	Update(ctx context.Context, booking *Booking) error

	// ListDependingOnCalendar returns active scheduled or confirmed bookings
	// starting at or after from whose type, combination or member resources
	// use calendarID.
	ListDependingOnCalendar(ctx context.Context, calendarID string, from time.Time) ([]*Booking, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var bookingColumns = []string{
	"b.id", "b.booking_type_id", "b.requester_id", "b.name",
	"b.start_time", "b.stop_time", "b.duration_seconds",
	"COALESCE(b.combination_id::text, '')",
	"COALESCE((SELECT array_agg(br.resource_id::text ORDER BY br.resource_id) FROM public.booking_resources br WHERE br.booking_id = b.id), '{}')",
	"b.auto_assign", "b.state", "b.active", "b.location", "b.videocall_location",
	"b.created_at", "b.updated_at",
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var (
		b           Booking
		start, stop *time.Time
		durSec      int64
	)
	dest := append([]any{
		&b.ID, &b.TypeID, &b.RequesterID, &b.Name,
		&start, &stop, &durSec,
		&b.CombinationID, &b.ResourceIDs,
		&b.AutoAssign, &b.State, &b.Active, &b.Location, &b.VideocallLocation,
		&b.CreatedAt, &b.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if start != nil && stop != nil {
		b.Start, b.Stop = start.UTC(), stop.UTC()
	}
	b.Duration = time.Duration(durSec) * time.Second
	return &b, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	conn := db.Conn(ctx, r.pool)
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.bookings").
		Columns(
			"booking_type_id", "requester_id", "name", "start_time", "stop_time", "duration_seconds",
			"combination_id", "auto_assign", "state", "active", "location", "videocall_location",
		).
		Values(
			b.TypeID, b.RequesterID, b.Name, nullableTime(b.Start), nullableTime(b.Stop), int64(b.Duration/time.Second),
			nullableString(b.CombinationID), b.AutoAssign, string(b.State), b.Active, b.Location, b.VideocallLocation,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := conn.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return fmt.Errorf("create booking failed: %w", err)
	}
	return r.syncResources(ctx, conn, b)
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, false)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, true)
}

func (r *pgxRepository) get(ctx context.Context, id string, forUpdate bool) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	q := psql.Select(bookingColumns...).
		From("public.bookings b").
		Where(squirrel.Eq{"b.id": id})
	if forUpdate {
		q = q.Suffix("FOR UPDATE OF b")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(bookingColumns, "count(*) OVER() as total_count")...).
		From("public.bookings b")

	if filter.RequesterID != "" {
		query = query.Where(squirrel.Eq{"b.requester_id": filter.RequesterID})
	}
	if filter.TypeID != "" {
		query = query.Where(squirrel.Eq{"b.booking_type_id": filter.TypeID})
	}
	if filter.State != "" {
		query = query.Where(squirrel.Eq{"b.state": string(filter.State)})
	}
	// Date range filtering (intersection logic)
	if filter.From != nil {
		query = query.Where(squirrel.Gt{"b.stop_time": filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.Lt{"b.start_time": filter.To})
	}

	orderBy := "b.created_at"
	switch filter.SortBy {
	case "start_time", "stop_time", "state", "created_at":
		orderBy = "b." + filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy + " " + orderDir + " NULLS LAST")

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64((filter.Page - 1) * filter.PageSize))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var (
		bookings []*Booking
		total    int
	)
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, total, rows.Err()
}

func (r *pgxRepository) Update(ctx context.Context, b *Booking) error {
	conn := db.Conn(ctx, r.pool)
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.bookings").
		Set("booking_type_id", b.TypeID).
		Set("name", b.Name).
		Set("start_time", nullableTime(b.Start)).
		Set("stop_time", nullableTime(b.Stop)).
		Set("duration_seconds", int64(b.Duration/time.Second)).
		Set("combination_id", nullableString(b.CombinationID)).
		Set("auto_assign", b.AutoAssign).
		Set("state", string(b.State)).
		Set("active", b.Active).
		Set("location", b.Location).
		Set("videocall_location", b.VideocallLocation).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": b.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query failed: %w", err)
	}

	if err := conn.QueryRow(ctx, query, args...).Scan(&b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update booking failed: %w", err)
	}
	return r.syncResources(ctx, conn, b)
}

// syncResources mirrors the member resources of a blocking booking into
// booking_resources, whose exclusion constraint rejects double booking.
func (r *pgxRepository) syncResources(ctx context.Context, conn db.Querier, b *Booking) error {
	if _, err := conn.Exec(ctx, "DELETE FROM public.booking_resources WHERE booking_id = $1", b.ID); err != nil {
		return fmt.Errorf("clear booking resources failed: %w", err)
	}
	if !b.Blocking() || len(b.ResourceIDs) == 0 {
		return nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	insert := psql.Insert("public.booking_resources").Columns("booking_id", "resource_id", "during")
	for _, id := range b.ResourceIDs {
		insert = insert.Values(b.ID, id, squirrel.Expr("tstzrange(?, ?, '[)')", b.Start, b.Stop))
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking resources query failed: %w", err)
	}

	if _, err := conn.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
			return &scheduling.ConflictError{
				CombinationID: b.CombinationID,
				Start:         b.Start,
				Stop:          b.Stop,
				Reason:        scheduling.ReasonBusy,
			}
		}
		return fmt.Errorf("insert booking resources failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) ListDependingOnCalendar(ctx context.Context, calendarID string, from time.Time) ([]*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings b").
		Join("public.booking_types bt ON bt.id = b.booking_type_id").
		LeftJoin("public.combinations c ON c.id = b.combination_id").
		Where(squirrel.Eq{"b.active": true}).
		Where(squirrel.Eq{"b.state": []string{string(StateScheduled), string(StateConfirmed)}}).
		Where(squirrel.GtOrEq{"b.start_time": from}).
		Where(squirrel.Or{
			squirrel.Eq{"bt.calendar_id": calendarID},
			squirrel.Eq{"c.forced_calendar_id": calendarID},
			squirrel.Expr(`EXISTS (
				SELECT 1 FROM public.combination_resources cr
				JOIN public.resources res ON res.id = cr.resource_id
				WHERE cr.combination_id = b.combination_id AND res.calendar_id = ?
			)`, calendarID),
		}).
		OrderBy("b.start_time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list dependent bookings query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dependent bookings failed: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
