package album

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	repositoryTimeout = 5 * time.Second

	nameConstraint      = "albums_name_key"
	shareCodeConstraint = "albums_share_code_key"
)

const albumColumns = `id, name, member_keys, share_code, expires_at, created_at, updated_at`

// Repository persists albums in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs an album repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new album. Unique violations on name and share code are
// reported as ErrDuplicateName and errShareCodeTaken.
func (r *Repository) Create(ctx context.Context, a Album) (Album, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO albums (id, name, member_keys, share_code, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
RETURNING ` + albumColumns + `;`

	row := r.pool.QueryRow(ctx, query, a.ID, a.Name, a.MemberKeys, a.ShareCode, a.ExpiresAt, a.CreatedAt)
	created, err := scanAlbum(row)
	if err != nil {
		switch uniqueViolation(err) {
		case nameConstraint:
			return Album{}, ErrDuplicateName
		case shareCodeConstraint:
			return Album{}, errShareCodeTaken
		}
		return Album{}, unavailable("create album", err)
	}
	return created, nil
}

// List returns every album in creation order.
func (r *Repository) List(ctx context.Context) ([]Album, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+albumColumns+` FROM albums ORDER BY created_at, id;`)
	if err != nil {
		return nil, unavailable("list albums", err)
	}
	defer rows.Close()

	albums := make([]Album, 0)
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, unavailable("scan album", err)
		}
		albums = append(albums, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate albums", err)
	}
	return albums, nil
}

// Get fetches an album by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Album, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = $1;`, id)
	return r.one(row, "get album")
}

// GetByShareCode fetches an album by share code, regardless of expiry.
func (r *Repository) GetByShareCode(ctx context.Context, code string) (Album, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums WHERE share_code = $1;`, code)
	return r.one(row, "get album by share code")
}

// ExistsByName reports whether an album with exactly name exists.
func (r *Repository) ExistsByName(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM albums WHERE name = $1);`, name).Scan(&exists); err != nil {
		return false, unavailable("check album name", err)
	}
	return exists, nil
}

// Delete removes the album. Deleting a missing album succeeds.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `DELETE FROM albums WHERE id = $1;`, id); err != nil {
		return unavailable("delete album", err)
	}
	return nil
}

// UpdateMembers replaces the member keys of an album.
func (r *Repository) UpdateMembers(ctx context.Context, id uuid.UUID, keys []string) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
UPDATE albums
SET member_keys = $2, updated_at = NOW()
WHERE id = $1;`, id, keys)
	if err != nil {
		return unavailable("update album members", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlbumNotFound
	}
	return nil
}

func (r *Repository) one(row pgx.Row, op string) (Album, error) {
	a, err := scanAlbum(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Album{}, ErrAlbumNotFound
		}
		return Album{}, unavailable(op, err)
	}
	return a, nil
}

func scanAlbum(row pgx.Row) (Album, error) {
	var a Album
	err := row.Scan(&a.ID, &a.Name, &a.MemberKeys, &a.ShareCode, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt)
	if a.MemberKeys == nil {
		a.MemberKeys = []string{}
	}
	return a, err
}

// uniqueViolation returns the violated constraint name, or "" for any other error.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistenceUnavailable, op, err)
}
