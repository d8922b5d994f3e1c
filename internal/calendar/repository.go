package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/resource-booking-backend/internal/db"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
)

type Repository interface {
	Loader
	GetByID(ctx context.Context, id string) (*Calendar, error)
	ReplaceAttendances(ctx context.Context, calendarID string, attendances []Attendance) error
	CreateLeave(ctx context.Context, leave *Leave) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Calendar, error) {
	conn := db.Conn(ctx, r.pool)
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("id", "name", "timezone", "created_at", "updated_at").
		From("public.calendars").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get calendar query failed: %w", err)
	}

	var c Calendar
	if err := conn.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Name, &c.Timezone, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get calendar failed: %w", err)
	}

	c.Attendances, err = r.attendances(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Load returns the calendar with its weekly pattern and every leave that
// overlaps rng.
func (r *pgxRepository) Load(ctx context.Context, id string, rng interval.Interval) (*Calendar, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	conn := db.Conn(ctx, r.pool)
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id", "calendar_id", "COALESCE(resource_id::text, '')", "name", "date_from", "date_to").
		From("public.calendar_leaves").
		Where(squirrel.Eq{"calendar_id": id}).
		Where(squirrel.Lt{"date_from": rng.Stop}).
		Where(squirrel.Gt{"date_to": rng.Start}).
		OrderBy("date_from").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list leaves query failed: %w", err)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leaves failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l Leave
		if err := rows.Scan(&l.ID, &l.CalendarID, &l.ResourceID, &l.Name, &l.DateFrom, &l.DateTo); err != nil {
			return nil, fmt.Errorf("scan leave failed: %w", err)
		}
		c.Leaves = append(c.Leaves, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaves failed: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) attendances(ctx context.Context, conn db.Querier, calendarID string) ([]Attendance, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("weekday", "hour_from", "hour_to").
		From("public.calendar_attendances").
		Where(squirrel.Eq{"calendar_id": calendarID}).
		OrderBy("weekday", "hour_from").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list attendances query failed: %w", err)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendances failed: %w", err)
	}
	defer rows.Close()

	var out []Attendance
	for rows.Next() {
		var (
			a       Attendance
			weekday int16
		)
		if err := rows.Scan(&weekday, &a.HourFrom, &a.HourTo); err != nil {
			return nil, fmt.Errorf("scan attendance failed: %w", err)
		}
		a.Weekday = time.Weekday(weekday)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceAttendances swaps the whole weekly pattern of a calendar.
func (r *pgxRepository) ReplaceAttendances(ctx context.Context, calendarID string, attendances []Attendance) error {
	conn := db.Conn(ctx, r.pool)
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("public.calendars").
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": calendarID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch calendar query failed: %w", err)
	}
	ct, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touch calendar failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}

	query, args, err = psql.Delete("public.calendar_attendances").
		Where(squirrel.Eq{"calendar_id": calendarID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete attendances query failed: %w", err)
	}
	if _, err := conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete attendances failed: %w", err)
	}

	if len(attendances) == 0 {
		return nil
	}

	insert := psql.Insert("public.calendar_attendances").Columns("calendar_id", "weekday", "hour_from", "hour_to")
	for _, a := range attendances {
		insert = insert.Values(calendarID, int16(a.Weekday), a.HourFrom, a.HourTo)
	}
	query, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert attendances query failed: %w", err)
	}
	if _, err := conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert attendances failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) CreateLeave(ctx context.Context, l *Leave) error {
	conn := db.Conn(ctx, r.pool)
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	var resourceID any
	if l.ResourceID != "" {
		resourceID = l.ResourceID
	}

	query, args, err := psql.Insert("public.calendar_leaves").
		Columns("calendar_id", "resource_id", "name", "date_from", "date_to").
		Values(l.CalendarID, resourceID, l.Name, l.DateFrom, l.DateTo).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create leave query failed: %w", err)
	}

	if err := conn.QueryRow(ctx, query, args...).Scan(&l.ID); err != nil {
		return fmt.Errorf("create leave failed: %w", err)
	}
	return nil
}
