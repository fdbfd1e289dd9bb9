package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
)

// ErrHelp provides context that help was given.
var ErrHelp = errors.New("provided help")

type Scheme struct {
	Index       int
	Description string
	Query       string
}

var scheme = []Scheme{
	{
		Index:       1,
		Description: "Create table: users.",
		Query: `
        CREATE TABLE IF NOT EXISTS users (
            id bigserial primary key,
            username text not null unique,
            password text not null,
            role text not null check (role in ('ADMIN', 'DASHBOARD')),
            full_name text,
            created_at timestamptz not null default now(),
            updated_at timestamptz not null default now(),
            deleted_at timestamptz
        );`,
	},
	{
		Index:       2,
		Description: "Create table: buses.",
		Query: `
        CREATE TABLE IF NOT EXISTS buses (
            bus_id varchar(10) primary key,
            route text,
            plate_number text,
            capacity int,
            created_at timestamptz not null default now(),
            updated_at timestamptz not null default now()
        );`,
	},
	{
		Index:       3,
		Description: "Create table: vans.",
		Query: `
        CREATE TABLE IF NOT EXISTS vans (
            id bigserial primary key,
            van_code varchar(20) not null unique,
            bus_id varchar(10) references buses(bus_id) on delete set null,
            plate_number text,
            driver_name text,
            capacity int,
            active boolean not null default true,
            created_at timestamptz not null default now(),
            updated_at timestamptz not null default now()
        );
        CREATE INDEX IF NOT EXISTS vans_bus_id_idx ON vans (bus_id);`,
	},
	{
		Index:       4,
		Description: "Create table: employees.",
		Query: `
        CREATE TABLE IF NOT EXISTS employees (
            id bigserial primary key,
            batch_id bigint not null unique,
            name text not null,
            bus_id varchar(10) references buses(bus_id) on delete set null,
            van_id bigint references vans(id) on delete set null,
            active boolean not null default true,
            created_at timestamptz not null default now(),
            updated_at timestamptz not null default now()
        );
        CREATE INDEX IF NOT EXISTS employees_bus_id_idx ON employees (bus_id);`,
	},
	{
		Index:       5,
		Description: "Create table: employee_master.",
		Query: `
        CREATE TABLE IF NOT EXISTS employee_master (
            id bigserial primary key,
            personid bigint,
            row_hash text,
            date_joined date,
            name text,
            sap_id text,
            status text,
            wdid text,
            transport_contractor text,
            address1 text,
            postcode text,
            city text,
            state text,
            contact_no text,
            pickup_point text,
            transport text,
            route text,
            building_id text,
            day_type text,
            nationality text,
            terminate date,
            created_at timestamptz not null default now(),
            updated_at timestamptz not null default now()
        );
        CREATE UNIQUE INDEX IF NOT EXISTS employee_master_personid_key
            ON employee_master (personid) WHERE personid IS NOT NULL;
        CREATE UNIQUE INDEX IF NOT EXISTS employee_master_row_hash_key
            ON employee_master (row_hash) WHERE personid IS NULL;`,
	},
	{
		Index:       6,
		Description: "Create table: attendances.",
		Query: `
        CREATE TABLE IF NOT EXISTS attendances (
            id bigserial primary key,
            scanned_batch_id bigint not null,
            employee_id bigint references employees(id) on delete set null,
            bus_id varchar(10) references buses(bus_id) on delete set null,
            van_id bigint references vans(id) on delete set null,
            shift text not null,
            status text not null,
            scanned_at timestamptz not null,
            scanned_on date not null,
            source text,
            UNIQUE (scanned_batch_id, scanned_on, shift)
        );
        CREATE INDEX IF NOT EXISTS attendances_scanned_on_idx ON attendances (scanned_on, bus_id);`,
	},
	{
		Index:       7,
		Description: "Create table: unknown_attendances.",
		Query: `
        CREATE TABLE IF NOT EXISTS unknown_attendances (
            id bigserial primary key,
            scanned_batch_id bigint not null,
            route_raw text,
            bus_id varchar(10),
            shift text not null,
            scanned_at timestamptz not null,
            scanned_on date not null,
            source text,
            UNIQUE (scanned_batch_id, scanned_on, shift)
        );`,
	},
}

// Schemes returns the migrations in the order they are applied.
func Schemes() []Scheme {
	out := make([]Scheme, len(scheme))
	copy(out, scheme)
	return out
}

// MigrateUP applies every scheme newer than the recorded version. A
// failed scheme marks the version dirty and is retried on the next run.
func MigrateUP(ctx context.Context, db *postgresql.Database, log logger.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (version int not null, dirty bool not null, error text);
		INSERT INTO schema_migrations (version, dirty)
		SELECT 0, false WHERE NOT EXISTS (SELECT 1 FROM schema_migrations);
	`); err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}

	var (
		version int
		dirty   bool
	)
	if err := db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		return errors.Wrap(err, "read schema_migrations")
	}

	for _, s := range pending(scheme, version, dirty) {
		if _, err := db.ExecContext(ctx, s.Query); err != nil {
			if _, uerr := db.ExecContext(ctx,
				`UPDATE schema_migrations SET version = ?, dirty = true, error = ?`, s.Index, err.Error()); uerr != nil {
				return errors.Wrap(uerr, "mark migration dirty")
			}
			return errors.Wrapf(err, "migrate version %d (%s)", s.Index, s.Description)
		}

		if _, err := db.ExecContext(ctx,
			`UPDATE schema_migrations SET version = ?, dirty = false, error = null`, s.Index); err != nil {
			return errors.Wrap(err, "record migration")
		}
		log.WithField("version", s.Index).Info(strings.TrimSuffix(s.Description, "."))
	}

	return nil
}

// pending returns the schemes to run for the recorded version. A dirty
// version is run again.
func pending(all []Scheme, version int, dirty bool) []Scheme {
	var out []Scheme
	for _, s := range all {
		if s.Index > version || (dirty && s.Index == version) {
			out = append(out, s)
		}
	}
	return out
}

// Version reports the recorded schema version, for the CLI.
func Version(ctx context.Context, db *postgresql.Database) (string, error) {
	var (
		version int
		dirty   bool
	)
	if err := db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		return "", errors.Wrap(err, "read schema_migrations")
	}
	if dirty {
		return fmt.Sprintf("%d (dirty)", version), nil
	}
	return fmt.Sprintf("%d", version), nil
}
