package profile

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by a Store when no profile is stored.
var ErrNotFound = errors.New("profile not found")

// Profile is the single user's stored account data.
type Profile struct {
	Email    string
	Password string
	Name     string
	// DOB is kept as submitted; it is validated to be parseable.
	DOB        string
	Gender     string
	Address    string
	Newsletter bool
}

// View is the public projection returned by the profile endpoint.
type View struct {
	Email      string
	Name       string
	Age        int
	Gender     string
	Address    string
	Newsletter bool
}

// Flag is an optional JSON boolean that remembers whether it was sent and
// whether the sent value actually was a boolean.
type Flag struct {
	Set       bool
	Value     bool
	Malformed bool
}

// Store persists the single profile.
type Store interface {
	// Get returns ErrNotFound when the profile was never registered or was deleted.
	Get(ctx context.Context) (*Profile, error)
	Put(ctx context.Context, p *Profile) error
	Delete(ctx context.Context) error
}

// Default returns the profile the service starts with.
func Default() *Profile {
	return &Profile{
		Email:      "yod.y@example.com",
		Password:   "secret",
		Name:       "Yod Yiam",
		DOB:        "1999-09-09",
		Gender:     "male",
		Address:    "123/456 Dindaeng, Bangkok",
		Newsletter: true,
	}
}

// dobLayouts are the accepted date of birth formats.
var dobLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// ParseDOB parses a date of birth in one of the accepted layouts.
func ParseDOB(s string) (time.Time, error) {
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unparseable date %q", s)
}

// Age returns the whole calendar years elapsed between dob and now, floored at zero.
func Age(dob, now time.Time) int {
	dob = dob.UTC()
	now = now.UTC()
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return max(years, 0)
}
