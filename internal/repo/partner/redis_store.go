package partner_repo

import (
	"PaymentGateway/internal/domain/partner"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "gateway"
	setActiveRetries   = 5
)

// partnerModel is the JSON representation stored in Redis.
type partnerModel struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	WebhookURL         string    `json:"webhook_url"`
	EventSubscriptions []string  `json:"event_subscriptions"`
	HMACSecret         string    `json:"hmac_secret"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}

func toPartnerModel(p partner.Partner) partnerModel {
	return partnerModel{
		ID:                 p.ID,
		Name:               p.Name,
		WebhookURL:         p.WebhookURL,
		EventSubscriptions: p.EventSubscriptions,
		HMACSecret:         p.HMACSecret,
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
	}
}

func (m partnerModel) toPartner() partner.Partner {
	return partner.Partner{
		ID:                 m.ID,
		Name:               m.Name,
		WebhookURL:         m.WebhookURL,
		EventSubscriptions: m.EventSubscriptions,
		HMACSecret:         m.HMACSecret,
		IsActive:           m.IsActive,
		CreatedAt:          m.CreatedAt,
	}
}

// RedisStore keeps each partner as a JSON string under <prefix>:partner:<id>
// and indexes ids in the sorted set <prefix>:partners scored by creation time.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) entityKey(id string) string {
	return s.prefix + ":partner:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":partners"
}

func (s *RedisStore) Save(ctx context.Context, p partner.Partner) error {
	raw, err := json.Marshal(toPartnerModel(p))
	if err != nil {
		return fmt.Errorf("encode partner: %w", err)
	}

	created, err := s.rdb.SetNX(ctx, s.entityKey(p.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("redis set partner: %w", err)
	}
	if !created {
		return partner.ErrAlreadyExists
	}

	score := float64(p.CreatedAt.UnixNano()) / 1e9
	if err := s.rdb.ZAdd(ctx, s.indexKey(), redis.Z{Score: score, Member: p.ID}).Err(); err != nil {
		return fmt.Errorf("redis index partner: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (partner.Partner, error) {
	raw, err := s.rdb.Get(ctx, s.entityKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return partner.Partner{}, partner.ErrNotFound
		}
		return partner.Partner{}, fmt.Errorf("redis get partner: %w", err)
	}
	return decodePartner(raw)
}

func (s *RedisStore) List(ctx context.Context) ([]partner.Partner, error) {
	ids, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list partner ids: %w", err)
	}
	if len(ids) == 0 {
		return []partner.Partner{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entityKey(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load partners: %w", err)
	}

	partners := make([]partner.Partner, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		p, err := decodePartner([]byte(str))
		if err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.entityKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis delete partner: %w", err)
	}
	return del.Val() > 0, nil
}

// SetActive rewrites the stored document under WATCH so a concurrent update
// of the same partner is not lost.
func (s *RedisStore) SetActive(ctx context.Context, id string, active bool) (partner.Partner, error) {
	key := s.entityKey(id)
	var updated partner.Partner

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		p, err := decodePartner(raw)
		if err != nil {
			return err
		}
		p.IsActive = active

		encoded, err := json.Marshal(toPartnerModel(p))
		if err != nil {
			return fmt.Errorf("encode partner: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err == nil {
			updated = p
		}
		return err
	}

	for range setActiveRetries {
		err := s.rdb.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return partner.Partner{}, partner.ErrNotFound
		default:
			return partner.Partner{}, fmt.Errorf("redis update partner status: %w", err)
		}
	}
	return partner.Partner{}, fmt.Errorf("redis update partner status: too much contention on %s", id)
}

func decodePartner(raw []byte) (partner.Partner, error) {
	var m partnerModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return partner.Partner{}, fmt.Errorf("decode partner: %w", err)
	}
	return m.toPartner(), nil
}
