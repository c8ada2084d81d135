package partner_repo

import (
	"PaymentGateway/internal/domain/partner"
	"PaymentGateway/pkg/postgres"
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

const partnersTable = "partners"

var partnerColumns = []string{"id", "name", "webhook_url", "event_subscriptions", "hmac_secret", "is_active", "created_at"}

var _ partner.SubscriberFinder = (*PgStore)(nil)

type PgStore struct {
	db      postgres.Executor
	builder squirrel.StatementBuilderType
}

func NewPgStore(pg *postgres.Postgres) *PgStore {
	return &PgStore{db: pg.Pool, builder: pg.Builder}
}

func (s *PgStore) Save(ctx context.Context, p partner.Partner) error {
	query, args, err := s.builder.Insert(partnersTable).
		Columns(partnerColumns...).
		Values(p.ID, p.Name, p.WebhookURL, p.EventSubscriptions, p.HMACSecret, p.IsActive, p.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err = s.db.Exec(ctx, query, args...); err != nil {
		if postgres.IsPgErrorUniqueViolation(err) {
			return partner.ErrAlreadyExists
		}
		return fmt.Errorf("insert partner: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id string) (partner.Partner, error) {
	query, args, err := s.builder.Select(partnerColumns...).
		From(partnersTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return partner.Partner{}, fmt.Errorf("build select query: %w", err)
	}

	p, err := scanPartner(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return partner.Partner{}, partner.ErrNotFound
		}
		return partner.Partner{}, fmt.Errorf("query partner by id: %w", err)
	}
	return p, nil
}

func (s *PgStore) List(ctx context.Context) ([]partner.Partner, error) {
	query, args, err := s.builder.Select(partnerColumns...).
		From(partnersTable).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	return s.queryPartners(ctx, query, args...)
}

// ActiveSubscribers filters in SQL. The is_active predicate is a literal so it
// matches the partial GIN index on event_subscriptions.
func (s *PgStore) ActiveSubscribers(ctx context.Context, eventType string) ([]partner.Partner, error) {
	query, args, err := s.builder.Select(partnerColumns...).
		From(partnersTable).
		Where("is_active AND event_subscriptions @> ARRAY[?]::text[]", eventType).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	return s.queryPartners(ctx, query, args...)
}

func (s *PgStore) queryPartners(ctx context.Context, query string, args ...any) ([]partner.Partner, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query partners: %w", err)
	}
	defer rows.Close()

	partners := make([]partner.Partner, 0)
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partners: %w", err)
	}
	return partners, nil
}

func (s *PgStore) Delete(ctx context.Context, id string) (bool, error) {
	query, args, err := s.builder.Delete(partnersTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete query: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete partner: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgStore) SetActive(ctx context.Context, id string, active bool) (partner.Partner, error) {
	query, args, err := s.builder.Update(partnersTable).
		Set("is_active", active).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING id, name, webhook_url, event_subscriptions, hmac_secret, is_active, created_at").
		ToSql()
	if err != nil {
		return partner.Partner{}, fmt.Errorf("build update query: %w", err)
	}

	p, err := scanPartner(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return partner.Partner{}, partner.ErrNotFound
		}
		return partner.Partner{}, fmt.Errorf("update partner status: %w", err)
	}
	return p, nil
}

func scanPartner(row pgx.Row) (partner.Partner, error) {
	var p partner.Partner
	err := row.Scan(&p.ID, &p.Name, &p.WebhookURL, &p.EventSubscriptions, &p.HMACSecret, &p.IsActive, &p.CreatedAt)
	return p, err
}
