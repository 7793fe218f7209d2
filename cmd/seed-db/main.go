// Command seed-db migrates the PostgreSQL schema and installs a profile.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/kart-ledger/internal/domain/profile"
	"github.com/xenking/kart-ledger/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		profileFile string
		force       bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&profileFile, "profile-file", "", "JSON file with the profile to install; the built-in default when empty")
	flag.BoolVar(&force, "force", false, "Replace an already stored profile")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, profileFile, force); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, profileFile string, force bool) error {
	p := profile.Default()
	if profileFile != "" {
		data, err := os.ReadFile(profileFile)
		if err != nil {
			return errors.Wrap(err, "read profile file")
		}
		if p, err = parseProfile(data); err != nil {
			return errors.Wrapf(err, "parse %s", profileFile)
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.NewProfileStore(pool)
	if force {
		if err := store.Put(ctx, p); err != nil {
			return errors.Wrap(err, "store profile")
		}
		lg.Info("Profile replaced", zap.String("email", p.Email))
		return nil
	}

	seeded, err := profile.NewService(store).Seed(ctx, p)
	if err != nil {
		return err
	}
	lg.Info("Profile seed", zap.String("email", p.Email), zap.Bool("installed", seeded))
	return nil
}

// parseProfile reads a registration-shaped JSON object and validates it the
// same way the register endpoint does.
func parseProfile(data []byte) (*profile.Profile, error) {
	var req profile.RegisterRequest
	str := func(dst *string) func(d *jx.Decoder) error {
		return func(d *jx.Decoder) error {
			v, err := d.Str()
			*dst = v
			return err
		}
	}
	fields := map[string]func(d *jx.Decoder) error{
		"email":    str(&req.Email),
		"password": str(&req.Password),
		"name":     str(&req.Name),
		"dob":      str(&req.DOB),
		"gender":   str(&req.Gender),
		"address":  str(&req.Address),
		"newsletter": func(d *jx.Decoder) error {
			v, err := d.Bool()
			req.Newsletter = profile.Flag{Set: true, Value: v, Malformed: err != nil}
			return err
		},
	}
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if fn, ok := fields[string(key)]; ok {
			if err := fn(d); err != nil {
				return errors.Wrap(err, string(key))
			}
			return nil
		}
		return d.Skip()
	}); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, errors.New("password is required")
	}
	return req.Profile(), nil
}
