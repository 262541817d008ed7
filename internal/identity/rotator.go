package identity

import (
	browser "github.com/EDDYCJY/fake-useragent"

	"FeedHarvester/internal/domain"
	"FeedHarvester/internal/ports"
)

// Rotator hands out request identities from a fixed pool, wrapping on
// rotation. Rotation is driven by the harvest loop after repeated
// blocking-suspected failures, never on a schedule. A session owns its
// rotator; no cross-goroutine access happens.
type Rotator struct {
	pool []domain.Identity
	idx  int
}

var _ ports.IdentitySource = (*Rotator)(nil)

// NewRotator builds the pool from the configured user agents, topping it up
// with random browser agents when fewer than minPool are configured. The
// header set is shared across identities.
func NewRotator(userAgents []string, headers map[string]string, minPool int) *Rotator {
	pool := make([]domain.Identity, 0, len(userAgents))
	for _, ua := range userAgents {
		pool = append(pool, domain.Identity{UserAgent: ua, Headers: headers})
	}
	for len(pool) < minPool {
		pool = append(pool, domain.Identity{UserAgent: browser.Random(), Headers: headers})
	}
	if len(pool) == 0 {
		pool = append(pool, domain.Identity{UserAgent: browser.Computer(), Headers: headers})
	}
	return &Rotator{pool: pool}
}

// Current returns the identity in use.
func (r *Rotator) Current() domain.Identity {
	return r.pool[r.idx]
}

// Rotate advances to the next identity in the pool and returns it.
func (r *Rotator) Rotate() domain.Identity {
	r.idx = (r.idx + 1) % len(r.pool)
	return r.pool[r.idx]
}
