package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-timetable-proxy/internal/models"
	appErrors "github.com/noah-isme/erp-timetable-proxy/pkg/errors"
)

// RedisTicketRepository stores session tickets in Redis so several API
// replicas can share them. Expiry is delegated to Redis key TTLs.
type RedisTicketRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisTicketRepository constructs a Redis backed ticket repository.
func NewRedisTicketRepository(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisTicketRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTicketRepository{client: client, prefix: prefix, ttl: ttl, now: time.Now, logger: logger}
}

func (r *RedisTicketRepository) key(token string) string {
	return r.prefix + token
}

// Save marshals the ticket and stores it with the repository TTL.
func (r *RedisTicketRepository) Save(ctx context.Context, ticket *models.SessionTicket) error {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}
	if err := r.client.Set(ctx, r.key(ticket.Token), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set ticket: %w", err)
	}
	return nil
}

// Take atomically reads and deletes the ticket.
func (r *RedisTicketRepository) Take(ctx context.Context, token string) (*models.SessionTicket, error) {
	raw, err := r.client.GetDel(ctx, r.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis getdel ticket: %w", err)
	}

	var ticket models.SessionTicket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		r.logger.Warn("discarding unreadable ticket", zap.Error(err))
		return nil, appErrors.ErrNotFound
	}
	if ticket.Expired(r.now(), r.ttl) {
		return nil, appErrors.ErrNotFound
	}
	return &ticket, nil
}

// Sweep is a no-op: Redis expires ticket keys on its own.
func (r *RedisTicketRepository) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	return 0, nil
}
