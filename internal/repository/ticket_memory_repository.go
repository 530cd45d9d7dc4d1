package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-timetable-proxy/internal/models"
	appErrors "github.com/noah-isme/erp-timetable-proxy/pkg/errors"
)

// MemoryTicketRepository keeps session tickets in a bounded, expiring LRU local
// to this process.
type MemoryTicketRepository struct {
	mu     sync.Mutex
	cache  *expirable.LRU[string, models.SessionTicket]
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewMemoryTicketRepository constructs an in-memory ticket repository.
func NewMemoryTicketRepository(capacity int, ttl time.Duration, logger *zap.Logger) *MemoryTicketRepository {
	if capacity <= 0 {
		capacity = 4096
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryTicketRepository{
		cache:  expirable.NewLRU[string, models.SessionTicket](capacity, nil, ttl),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Save stores the ticket under its token.
func (r *MemoryTicketRepository) Save(ctx context.Context, ticket *models.SessionTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if evicted := r.cache.Add(ticket.Token, *ticket); evicted {
		r.logger.Warn("ticket store full, evicted oldest ticket")
	}
	return nil
}

// Take removes the ticket and returns it. Unknown or expired tokens yield ErrNotFound.
func (r *MemoryTicketRepository) Take(ctx context.Context, token string) (*models.SessionTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.cache.Peek(token)
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	r.cache.Remove(token)
	if ticket.Expired(r.now(), r.ttl) {
		return nil, appErrors.ErrNotFound
	}
	return &ticket, nil
}

// Sweep drops tickets older than ttl and returns how many were removed.
func (r *MemoryTicketRepository) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		ttl = r.ttl
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for _, token := range r.cache.Keys() {
		ticket, ok := r.cache.Peek(token)
		if !ok {
			continue
		}
		if ticket.Expired(now, ttl) {
			r.cache.Remove(token)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live tickets.
func (r *MemoryTicketRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}
