package profile

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Service implements the single-user profile operations on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a Service backed by the given Store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Register validates the request and replaces the stored profile.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := req.Profile()
	if err := s.store.Put(ctx, p); err != nil {
		return nil, errors.Wrap(err, "store profile")
	}
	return p, nil
}

// View returns the public projection of the stored profile.
func (s *Service) View(ctx context.Context) (*View, error) {
	p, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	age := 0
	if dob, err := ParseDOB(p.DOB); err == nil {
		age = Age(dob, s.now())
	}

	return &View{
		Email:      p.Email,
		Name:       p.Name,
		Age:        age,
		Gender:     p.Gender,
		Address:    p.Address,
		Newsletter: p.Newsletter,
	}, nil
}

// Update applies the provided fields to the stored profile.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	if req.DOB != "" {
		p.DOB = req.DOB
	}
	if req.Gender != "" {
		p.Gender = strings.ToLower(req.Gender)
	}
	if req.Address != "" {
		p.Address = req.Address
	}
	if req.Newsletter.Set {
		p.Newsletter = req.Newsletter.Value
	}

	if err := s.store.Put(ctx, p); err != nil {
		return nil, errors.Wrap(err, "store profile")
	}
	return p, nil
}

// Delete removes the stored profile.
func (s *Service) Delete(ctx context.Context) error {
	if err := s.store.Delete(ctx); err != nil {
		return errors.Wrap(err, "delete profile")
	}
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return invalid(MsgPasswordsMissing)
	}

	p, err := s.store.Get(ctx)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(req.CurrentPassword), []byte(p.Password)) != 1 {
		return invalid(MsgPasswordWrong)
	}
	if req.NewPassword != req.ConfirmPassword {
		return invalid(MsgPasswordMismatch)
	}

	p.Password = req.NewPassword
	if err := s.store.Put(ctx, p); err != nil {
		return errors.Wrap(err, "store profile")
	}
	return nil
}

// Seed stores p unless a profile already exists. It reports whether p was stored.
func (s *Service) Seed(ctx context.Context, p *Profile) (bool, error) {
	_, err := s.store.Get(ctx)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, errors.Wrap(err, "get profile")
	}
	if err := s.store.Put(ctx, p); err != nil {
		return false, errors.Wrap(err, "store profile")
	}
	return true, nil
}
