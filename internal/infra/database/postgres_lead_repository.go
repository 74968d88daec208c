package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"banquet_crm/internal/domain/lead"

	"github.com/lib/pq"
)

type PostgresLeadRepository struct {
	db *sql.DB
}

func NewPostgresLeadRepository(db *sql.DB) *PostgresLeadRepository {
	return &PostgresLeadRepository{db: db}
}

const leadColumns = `id, name, COALESCE(phone, ''), email, source, stage, notes, external_ref,
	event_date, guest_count, site_visit_date, assignee, assignment_method, assigned_at,
	created_at, updated_at, stage_updated_at, last_contacted_at, first_response_at,
	greeting_sent_at, next_follow_up_at, ai_handling, reminded, escalated, quote_reminder_sent,
	last_message_preview, last_message_at, last_message_direction, has_unread_messages`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*lead.Lead, error) {
	var (
		l                                                              lead.Lead
		eventDate, siteVisit, assignedAt, lastContacted, firstResponse sql.NullTime
		greetingSent, nextFollowUp, lastMessageAt                      sql.NullTime
		stage, direction                                               string
	)
	err := row.Scan(
		&l.ID, &l.Name, &l.Phone, &l.Email, &l.Source, &stage, &l.Notes, &l.ExternalRef,
		&eventDate, &l.GuestCount, &siteVisit, &l.Assignee, &l.AssignmentMethod, &assignedAt,
		&l.CreatedAt, &l.UpdatedAt, &l.StageUpdatedAt, &lastContacted, &firstResponse,
		&greetingSent, &nextFollowUp, &l.AIHandling, &l.Reminded, &l.Escalated, &l.QuoteReminderSent,
		&l.LastMessagePreview, &lastMessageAt, &direction, &l.HasUnreadMessages,
	)
	if err != nil {
		return nil, err
	}
	l.Stage = lead.Stage(stage)
	l.LastMessageDirection = lead.Direction(direction)
	l.EventDate = timePtr(eventDate)
	l.SiteVisitDate = timePtr(siteVisit)
	l.AssignedAt = timePtr(assignedAt)
	l.LastContactedAt = timePtr(lastContacted)
	l.FirstResponseAt = timePtr(firstResponse)
	l.GreetingSentAt = timePtr(greetingSent)
	l.NextFollowUpAt = timePtr(nextFollowUp)
	l.LastMessageAt = timePtr(lastMessageAt)
	return &l, nil
}

func (r *PostgresLeadRepository) Create(ctx context.Context, l *lead.Lead) error {
	query := `INSERT INTO leads (id, name, phone, email, source, stage, notes, external_ref,
	              event_date, guest_count, site_visit_date, created_at, updated_at, stage_updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12, $12)`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.Name, nullString(l.Phone), l.Email, l.Source, l.Stage, l.Notes, l.ExternalRef,
		nullTime(l.EventDate), l.GuestCount, nullTime(l.SiteVisitDate), l.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "leads_phone_key") {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("error creating lead: %w", err)
	}
	l.UpdatedAt = l.CreatedAt
	l.StageUpdatedAt = l.CreatedAt
	return nil
}

func (r *PostgresLeadRepository) GetByID(ctx context.Context, id string) (*lead.Lead, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("error getting lead by ID: %w", err)
	}
	return l, nil
}

func (r *PostgresLeadRepository) GetByPhone(ctx context.Context, phone string) (*lead.Lead, error) {
	if phone == "" {
		return nil, ErrLeadNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE phone = $1`, phone)
	l, err := scanLead(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("error getting lead by phone: %w", err)
	}
	return l, nil
}

func (r *PostgresLeadRepository) SetAssignment(ctx context.Context, id, assignee, method string, at time.Time) error {
	query := `UPDATE leads SET assignee = $2, assignment_method = $3, assigned_at = $4, updated_at = NOW()
	          WHERE id = $1`
	return r.execOne(ctx, "setting lead assignment", query, id, assignee, method, at)
}

func (r *PostgresLeadRepository) CountNewByAssignee(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT assignee, COUNT(*) FROM leads WHERE stage = $1 AND assignee <> '' GROUP BY assignee`,
		lead.StageNew)
	if err != nil {
		return nil, fmt.Errorf("error counting new leads by assignee: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("error scanning lead count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

func (r *PostgresLeadRepository) UpdateStage(ctx context.Context, id string, stage lead.Stage, at time.Time) error {
	// Re-entering Quoted starts a new quote, which gets its own follow-up.
	query := `UPDATE leads
	          SET stage = $2, stage_updated_at = $3, updated_at = NOW(),
	              quote_reminder_sent = CASE WHEN $2 = 'Quoted' AND stage <> 'Quoted' THEN FALSE ELSE quote_reminder_sent END
	          WHERE id = $1`
	return r.execOne(ctx, "updating lead stage", query, id, string(stage), at)
}

func (r *PostgresLeadRepository) ApplyAutomation(ctx context.Context, id string, a lead.Automation) error {
	query := `UPDATE leads
	          SET next_follow_up_at = COALESCE($2, next_follow_up_at),
	              ai_handling = ai_handling OR $3,
	              updated_at = NOW()
	          WHERE id = $1`
	return r.execOne(ctx, "applying lead automation", query, id, nullTime(a.NextFollowUpAt), a.AIHandling)
}

func (r *PostgresLeadRepository) RecordGreeting(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE leads SET greeting_sent_at = $2, last_contacted_at = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "recording greeting", query, id, at)
}

func (r *PostgresLeadRepository) RecordActivity(ctx context.Context, id string, a lead.Activity) error {
	query := `UPDATE leads
	          SET last_message_preview = $2,
	              last_message_at = $3,
	              last_message_direction = $4,
	              has_unread_messages = CASE WHEN $4 = 'inbound' THEN TRUE ELSE has_unread_messages END,
	              last_contacted_at = CASE WHEN $4 = 'outbound' AND first_response_at IS NULL THEN $3 ELSE last_contacted_at END,
	              first_response_at = CASE WHEN $4 = 'outbound' THEN COALESCE(first_response_at, $3) ELSE first_response_at END,
	              updated_at = NOW()
	          WHERE id = $1`
	return r.execOne(ctx, "recording message activity", query, id, lead.PreviewOf(a.Preview), a.At, string(a.Direction))
}

func (r *PostgresLeadRepository) ListByStages(ctx context.Context, stages []lead.Stage) ([]*lead.Lead, error) {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE stage = ANY($1) ORDER BY created_at`,
		pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("error listing leads by stage: %w", err)
	}
	defer rows.Close()

	var leads []*lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *PostgresLeadRepository) MarkReminded(ctx context.Context, id string) (bool, error) {
	return r.setFlag(ctx, id, "reminded")
}

func (r *PostgresLeadRepository) MarkEscalated(ctx context.Context, id string) (bool, error) {
	return r.setFlag(ctx, id, "escalated")
}

func (r *PostgresLeadRepository) MarkQuoteReminderSent(ctx context.Context, id string) (bool, error) {
	return r.setFlag(ctx, id, "quote_reminder_sent")
}

// setFlag flips a one-way flag. The column name is one of the constants above, never user input.
func (r *PostgresLeadRepository) setFlag(ctx context.Context, id, column string) (bool, error) {
	query := fmt.Sprintf(`UPDATE leads SET %[1]s = TRUE, updated_at = NOW() WHERE id = $1 AND %[1]s = FALSE`, column)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("error setting %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected for %s: %w", column, err)
	}
	return n == 1, nil
}

func (r *PostgresLeadRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error %s: %w", op, err)
	}
	if n == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
