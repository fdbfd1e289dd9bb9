package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/pkg/logger"
)

type Config struct {
	User       string
	Password   string
	Host       string
	Port       string
	Name       string
	DisableTLS bool
	Debug      bool
}

// Database is embedded by every repository.
type Database struct {
	*bun.DB
	log logger.Logger
}

func NewDB(cfg Config, log logger.Logger) *Database {
	opts := []pgdriver.Option{
		pgdriver.WithAddr(net.JoinHostPort(cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Name),
		pgdriver.WithApplicationName("busoptimizer"),
		pgdriver.WithTimeout(10 * time.Second),
	}
	if cfg.DisableTLS {
		opts = append(opts, pgdriver.WithInsecure(true))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return &Database{DB: db, log: log.WithComponent("postgres")}
}

// Ping checks the connection, retrying a few times while the database
// comes up.
func (d *Database) Ping(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if err = d.DB.PingContext(ctx); err == nil {
			return nil
		}
		d.log.WithField("attempt", attempt).Warnf("database ping failed: %v", err)

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "ping database")
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "ping database")
}

// CheckClaims returns the request claims and rejects callers whose role is
// not one of roles.
func (d Database) CheckClaims(ctx context.Context, roles ...string) (auth.Claims, error) {
	claims, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Claims{}, web.NewRequestError(errors.New("claims missing from context"), http.StatusUnauthorized)
	}
	if !claims.Authorized(roles...) {
		return auth.Claims{}, web.NewRequestError(auth.ErrForbidden, http.StatusForbidden)
	}
	return claims, nil
}

// ValidateStruct runs tag validation and checks that the named fields are
// set.
func (d Database) ValidateStruct(s interface{}, requiredFields ...string) error {
	if err := web.Validate(s); err != nil {
		if fields, ok := web.ValidationFields(err); ok {
			return &web.Error{Err: errors.New("validation failed"), Fields: fields, Status: http.StatusBadRequest}
		}
		return web.NewRequestError(err, http.StatusBadRequest)
	}
	if fields := web.RequiredFields(s, requiredFields...); len(fields) > 0 {
		return &web.Error{Err: errors.New("required fields are missing"), Fields: fields, Status: http.StatusBadRequest}
	}
	return nil
}

// DeleteRow removes a row by id. Table names come from code, never from
// the request.
func (d Database) DeleteRow(ctx context.Context, table string, id interface{}) error {
	res, err := d.NewDelete().
		TableExpr(table).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("deleting %s", table))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return web.NewRequestError(errors.Errorf("%s not found", table), http.StatusNotFound)
	}
	return nil
}
