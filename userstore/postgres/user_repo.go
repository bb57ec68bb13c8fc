// Package postgres implements userstore.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/MrEthical07/cookieauth/userstore"
)

// Querier is the subset of *pgxpool.Pool the repository uses. pgxmock pools
// satisfy it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const userColumns = `id, email, password_hash, verified, created_at, updated_at`

// UserRepository implements userstore.Store using PostgreSQL.
type UserRepository struct {
	pool Querier
	now  func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Querier) *UserRepository {
	return &UserRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

var _ userstore.Store = (*UserRepository)(nil)

// Create inserts a new unverified account.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (*userstore.User, error) {
	now := r.now()
	user := &userstore.User{
		ID:           ulid.Make().String(),
		Email:        userstore.NormalizeEmail(email),
		PasswordHash: passwordHash,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Verified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, oops.Code("USER_EMAIL_TAKEN").
				With("email", user.Email).
				Wrap(userstore.ErrEmailTaken)
		}
		return nil, oops.Code("USER_INSERT_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return user, nil
}

// FindByEmail retrieves an account by email (case-insensitive).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*userstore.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, userstore.NormalizeEmail(email))

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(userstore.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// FindByID retrieves an account by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*userstore.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(userstore.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// MarkVerified flips the verified flag and returns the updated account.
func (r *UserRepository) MarkVerified(ctx context.Context, id string) (*userstore.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET verified = TRUE, updated_at = $2
		WHERE id = $1
		RETURNING `+userColumns,
		id, r.now(),
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(userstore.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_VERIFY_FAILED").
			With("operation", "mark user verified").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// UpdatePasswordHash replaces the stored digest and returns the updated account.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) (*userstore.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+userColumns,
		id, passwordHash, r.now(),
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(userstore.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_PASSWORD_UPDATE_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// Ping checks database connectivity.
func (r *UserRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return oops.Code("USER_STORE_PING_FAILED").Wrap(err)
	}
	return nil
}

func scanUser(row pgx.Row) (*userstore.User, error) {
	var user userstore.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Verified,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
