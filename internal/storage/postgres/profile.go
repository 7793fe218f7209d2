package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-ledger/internal/domain/profile"
)

var _ profile.Store = (*ProfileStore)(nil)

const (
	selectProfile = `SELECT email, password, name, dob, gender, address, newsletter
FROM profile WHERE id = 1`

	upsertProfile = `INSERT INTO profile (id, email, password, name, dob, gender, address, newsletter, updated_at)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE SET
    email = EXCLUDED.email,
    password = EXCLUDED.password,
    name = EXCLUDED.name,
    dob = EXCLUDED.dob,
    gender = EXCLUDED.gender,
    address = EXCLUDED.address,
    newsletter = EXCLUDED.newsletter,
    updated_at = EXCLUDED.updated_at`

	deleteProfile = `DELETE FROM profile WHERE id = 1`
)

// ProfileStore implements profile.Store on a single-row PostgreSQL table.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore returns a ProfileStore that uses the given pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Get returns profile.ErrNotFound when the row does not exist.
func (s *ProfileStore) Get(ctx context.Context) (*profile.Profile, error) {
	var p profile.Profile
	err := s.pool.QueryRow(ctx, selectProfile).Scan(
		&p.Email, &p.Password, &p.Name, &p.DOB, &p.Gender, &p.Address, &p.Newsletter,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrNotFound
		}
		return nil, errors.Wrap(err, "select profile")
	}
	return &p, nil
}

// Put inserts or replaces the profile row.
func (s *ProfileStore) Put(ctx context.Context, p *profile.Profile) error {
	_, err := s.pool.Exec(ctx, upsertProfile,
		p.Email, p.Password, p.Name, p.DOB, p.Gender, p.Address, p.Newsletter,
	)
	if err != nil {
		return errors.Wrap(err, "upsert profile")
	}
	return nil
}

// Delete removes the profile row. Deleting a missing row is not an error.
func (s *ProfileStore) Delete(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, deleteProfile); err != nil {
		return errors.Wrap(err, "delete profile")
	}
	return nil
}

// Ping checks database connectivity.
func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
