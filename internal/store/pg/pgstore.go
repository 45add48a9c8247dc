// Package pg backs the portal stores with PostgreSQL. The in-memory
// implementations in identity, registry and board remain the reference
// semantics; this package mirrors them row for row.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"newhope.org/internal/board"
	"newhope.org/internal/identity"
	"newhope.org/internal/registry"
)

// pgUniqueViolation is the SQLSTATE for unique constraint failures.
const pgUniqueViolation = "23505"

// Store owns the connection pool and hands out the per-domain stores.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Identities() *Identities       { return &Identities{db: s.db} }
func (s *Store) Patients() *Patients           { return &Patients{db: s.db} }
func (s *Store) Announcements() *Announcements { return &Announcements{db: s.db} }

// Identities implements identity.Store over the users table.
type Identities struct {
	db *sql.DB
}

var _ identity.Store = (*Identities)(nil)

func (s *Identities) Register(ctx context.Context, name, email, secret string) (identity.Identity, error) {
	return s.create(ctx, name, email, secret, identity.RolePatient)
}

// Seed upserts the administrator account. Restarts against a populated
// database find the existing row instead of failing on the unique email.
func (s *Identities) Seed(ctx context.Context, name, email, secret string) (identity.Identity, error) {
	id, err := s.create(ctx, name, email, secret, identity.RoleAdmin)
	if errors.Is(err, identity.ErrDuplicateEmail) {
		return s.FindByEmail(ctx, email)
	}
	return id, err
}

func (s *Identities) create(ctx context.Context, name, email, secret string, role identity.Role) (identity.Identity, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || secret == "" {
		return identity.Identity{}, identity.ErrMissingField
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		insert into users(name, email, secret, role)
		values ($1,$2,$3,$4) returning id
	`, name, email, secret, string(role)).Scan(&id)
	if isUniqueViolation(err) {
		return identity.Identity{}, identity.ErrDuplicateEmail
	}
	if err != nil {
		return identity.Identity{}, err
	}
	return identity.Identity{ID: id, Name: name, Email: email, Secret: secret, Role: role}, nil
}

func (s *Identities) Authenticate(ctx context.Context, email, secret string) (identity.Identity, error) {
	stored, err := s.FindByEmail(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.Identity{}, identity.ErrInvalidCredentials
	}
	if err != nil {
		return identity.Identity{}, err
	}
	if !identity.VerifySecret(stored.Secret, secret) {
		return identity.Identity{}, identity.ErrInvalidCredentials
	}
	return stored, nil
}

func (s *Identities) FindByEmail(ctx context.Context, email string) (identity.Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx, `
		select id, name, email, secret, role from users where email=$1
	`, strings.TrimSpace(email)))
}

func (s *Identities) FindByID(ctx context.Context, id int64) (identity.Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx, `
		select id, name, email, secret, role from users where id=$1
	`, id))
}

func scanIdentity(row *sql.Row) (identity.Identity, error) {
	var ident identity.Identity
	var role string
	err := row.Scan(&ident.ID, &ident.Name, &ident.Email, &ident.Secret, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Identity{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Identity{}, err
	}
	ident.Role = identity.Role(role)
	return ident, nil
}

func (s *Identities) RemoveByID(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	return err
}

// Patients implements registry.Store over the patients table.
type Patients struct {
	db *sql.DB
}

var _ registry.Store = (*Patients)(nil)

func (s *Patients) Admit(ctx context.Context, ownerID int64, fullName, phone, address, reason string) (registry.Record, error) {
	rec := registry.Record{
		OwnerID:  ownerID,
		FullName: fullName,
		Phone:    phone,
		Address:  address,
		Reason:   reason,
		Status:   registry.StatusPending,
	}
	err := s.db.QueryRowContext(ctx, `
		insert into patients(owner_id, full_name, phone, address, reason, status)
		values ($1,$2,$3,$4,$5,$6) returning id
	`, ownerID, fullName, phone, address, reason, registry.StatusPending).Scan(&rec.ID)
	if err != nil {
		return registry.Record{}, err
	}
	return rec, nil
}

func (s *Patients) FindByOwner(ctx context.Context, ownerID int64) (registry.Record, error) {
	var rec registry.Record
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, full_name, phone, address, reason, status
		from patients where owner_id=$1
	`, ownerID).Scan(&rec.ID, &rec.OwnerID, &rec.FullName, &rec.Phone, &rec.Address, &rec.Reason, &rec.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Record{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Record{}, err
	}
	return rec, nil
}

func (s *Patients) List(ctx context.Context) ([]registry.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, owner_id, full_name, phone, address, reason, status
		from patients order by id asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []registry.Record{}
	for rows.Next() {
		var rec registry.Record
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.FullName, &rec.Phone, &rec.Address, &rec.Reason, &rec.Status); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetStatus updates the record when it exists. Unknown ids and empty
// statuses are dropped, matching the in-memory store.
func (s *Patients) SetStatus(ctx context.Context, id int64, status string) error {
	if status == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `update patients set status=$2 where id=$1`, id, status)
	return err
}

func (s *Patients) Delete(ctx context.Context, id int64) (int64, bool, error) {
	var ownerID int64
	err := s.db.QueryRowContext(ctx, `
		delete from patients where id=$1 returning owner_id
	`, id).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return ownerID, true, nil
}

// Announcements implements board.Store over the announcements table.
type Announcements struct {
	db *sql.DB
}

var _ board.Store = (*Announcements)(nil)

func (s *Announcements) Post(ctx context.Context, title, content string) (board.Announcement, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return board.Announcement{}, board.ErrMissingField
	}

	ann := board.Announcement{Title: title, Content: content}
	err := s.db.QueryRowContext(ctx, `
		insert into announcements(title, content)
		values ($1,$2) returning id, created_at
	`, title, content).Scan(&ann.ID, &ann.CreatedAt)
	if err != nil {
		return board.Announcement{}, err
	}
	return ann, nil
}

func (s *Announcements) Remove(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `delete from announcements where id=$1`, id)
	return err
}

// List returns announcements most recent first.
func (s *Announcements) List(ctx context.Context) ([]board.Announcement, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, title, content, created_at
		from announcements order by id desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []board.Announcement{}
	for rows.Next() {
		var ann board.Announcement
		if err := rows.Scan(&ann.ID, &ann.Title, &ann.Content, &ann.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
