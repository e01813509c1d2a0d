package directory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
)

// ErrNumberNotFound means the dialed number is not mapped to any business.
// The gateway must reject the call at the provider boundary when it sees this.
var ErrNumberNotFound = errors.New("directory: number not configured")

// Resolver looks up which business owns a dialed number.
type Resolver interface {
	ResolveNumber(ctx context.Context, phoneNumber string) (Number, error)
}

// PostgresRepo resolves numbers from the call_center_numbers table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ResolveNumber(ctx context.Context, phoneNumber string) (Number, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return Number{}, ErrNumberNotFound
	}

	const q = `
		SELECT id, business_id, phone_number, COALESCE(label, ''), active, created_at
		FROM call_center_numbers
		WHERE phone_number = $1 AND active = TRUE`

	var n Number
	err := r.db.QueryRowContext(ctx, q, phoneNumber).Scan(
		&n.ID, &n.BusinessID, &n.PhoneNumber, &n.Label, &n.Active, &n.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Number{}, ErrNumberNotFound
	}
	if err != nil {
		return Number{}, err
	}
	return n, nil
}

// MemoryRepo is an in-memory resolver useful for tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	numbers map[string]Number // keyed by phone number
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{numbers: make(map[string]Number)}
}

func (r *MemoryRepo) Add(n Number) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.numbers[n.PhoneNumber] = n
}

func (r *MemoryRepo) ResolveNumber(ctx context.Context, phoneNumber string) (Number, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.numbers[strings.TrimSpace(phoneNumber)]
	if !ok || !n.Active {
		return Number{}, ErrNumberNotFound
	}
	return n, nil
}
