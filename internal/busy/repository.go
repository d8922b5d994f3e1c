package busy

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/resource-booking-backend/internal/db"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
)

type pgxSource struct {
	pool *pgxpool.Pool
}

// NewPgxSource returns a Source reading bookings and meetings from Postgres.
func NewPgxSource(pool *pgxpool.Pool) Source {
	return &pgxSource{pool: pool}
}

func (s *pgxSource) Commitments(ctx context.Context, resourceIDs, userIDs []string, rng interval.Interval, excludeBookingID string) ([]Commitment, error) {
	if len(resourceIDs) == 0 && len(userIDs) == 0 {
		return nil, nil
	}
	if userIDs == nil {
		userIDs = []string{}
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(
		"b.id", "b.requester_id", "b.start_time", "b.stop_time",
		"COALESCE(array_agg(cr.resource_id::text) FILTER (WHERE cr.resource_id IS NOT NULL), '{}')",
	).
		From("public.bookings b").
		LeftJoin("public.combination_resources cr ON cr.combination_id = b.combination_id").
		Where(squirrel.Eq{"b.active": true}).
		Where(squirrel.Eq{"b.state": []string{"scheduled", "confirmed"}}).
		Where(squirrel.Lt{"b.start_time": rng.Stop}).
		Where(squirrel.Gt{"b.stop_time": rng.Start}).
		Where(squirrel.Or{
			squirrel.Expr("EXISTS (SELECT 1 FROM public.combination_resources x WHERE x.combination_id = b.combination_id AND x.resource_id = ANY(?::uuid[]))", resourceIDs),
			squirrel.Expr("b.requester_id = ANY(?::text[])", userIDs),
		}).
		GroupBy("b.id")

	if excludeBookingID != "" {
		query = query.Where(squirrel.NotEq{"b.id": excludeBookingID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list commitments query failed: %w", err)
	}

	rows, err := db.Conn(ctx, s.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list commitments failed: %w", err)
	}
	defer rows.Close()

	var out []Commitment
	for rows.Next() {
		var c Commitment
		if err := rows.Scan(&c.BookingID, &c.RequesterID, &c.Start, &c.Stop, &c.ResourceIDs); err != nil {
			return nil, fmt.Errorf("scan commitment failed: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const meetingsQuery = `
	SELECT m.id, m.name, m.start_time, m.stop_time, m.organizer_id, m.show_as_free,
	       m.recurrence_weekdays, m.recurrence_interval, m.recurrence_count, m.recurrence_until,
	       array_agg(ma.user_id)
	FROM public.meetings m
	JOIN public.meeting_attendees ma ON ma.meeting_id = m.id
	WHERE m.id IN (SELECT meeting_id FROM public.meeting_attendees WHERE user_id = ANY($1::text[]))
	  AND NOT m.show_as_free
	  AND m.start_time < $3
	  AND (
	        m.stop_time > $2
	     OR (m.recurrence_count > 0 OR m.recurrence_until IS NOT NULL)
	        AND (m.recurrence_until IS NULL OR m.recurrence_until >= $2 - (m.stop_time - m.start_time))
	  )
	GROUP BY m.id
`

func (s *pgxSource) Meetings(ctx context.Context, userIDs []string, rng interval.Interval) ([]Meeting, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := db.Conn(ctx, s.pool).Query(ctx, meetingsQuery, userIDs, rng.Start, rng.Stop)
	if err != nil {
		return nil, fmt.Errorf("list meetings failed: %w", err)
	}
	defer rows.Close()

	var out []Meeting
	for rows.Next() {
		var (
			m        Meeting
			weekdays []int16
			every    int
			count    int
			until    *time.Time
		)
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Start, &m.Stop, &m.OrganizerID, &m.ShowAsFree,
			&weekdays, &every, &count, &until, &m.AttendeeIDs,
		); err != nil {
			return nil, fmt.Errorf("scan meeting failed: %w", err)
		}
		if count > 0 || until != nil {
			m.Recurrence = &Recurrence{Interval: every, Count: count, Until: until}
			for _, d := range weekdays {
				m.Recurrence.Weekdays = append(m.Recurrence.Weekdays, time.Weekday(d))
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
