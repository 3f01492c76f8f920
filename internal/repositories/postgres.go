package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chatify/backend/internal/db"
	"github.com/chatify/backend/internal/models"
)

// statusRankSQL maps a message status to its rank inside a query, mirroring
// models.MessageStatus.Rank.
const statusRankSQL = `CASE %s WHEN 'seen' THEN 3 WHEN 'delivered' THEN 2 WHEN 'sent' THEN 1 ELSE 0 END`

// PostgresUserRepository provides PostgreSQL-backed persistence for user
// records. Friends and friend requests live in jsonb columns of the users
// row, so every Save rewrites a single record.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	friends, requests, err := marshalEmbedded(user)
	if err != nil {
		return err
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, name, email, password_hash, avatar_url, last_seen, friends, friend_requests, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10)
    `, user.ID, user.Name, user.Email, user.Password, user.AvatarURL, user.LastSeen, friends, requests, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user record by identity.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByEmail fetches a user record by email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, where string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, name, email, password_hash, avatar_url, last_seen, friends, friend_requests, created_at, updated_at
        FROM users `+where, arg)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// Save rewrites an existing user record in full.
func (r *PostgresUserRepository) Save(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	friends, requests, err := marshalEmbedded(user)
	if err != nil {
		return err
	}

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET name = $2, email = $3, password_hash = $4, avatar_url = $5, last_seen = $6,
            friends = $7::jsonb, friend_requests = $8::jsonb, updated_at = $9
        WHERE id = $1
    `, user.ID, user.Name, user.Email, user.Password, user.AvatarURL, user.LastSeen, friends, requests, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// TouchLastSeen records when the user was last connected. Unknown identities
// are ignored.
func (r *PostgresUserRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `UPDATE users SET last_seen = $2 WHERE id = $1`, id, at.UTC()); err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

// List returns every user record.
func (r *PostgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, name, email, password_hash, avatar_url, last_seen, friends, friend_requests, created_at, updated_at
        FROM users
        ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// PendingRequestsFrom returns pending friend requests sent by the given user,
// scanning the embedded request arrays across all recipient records.
func (r *PostgresUserRepository) PendingRequestsFrom(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT req
        FROM users, jsonb_array_elements(friend_requests) AS req
        WHERE req->>'from' = $1 AND req->>'status' = 'pending'
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("select outgoing requests: %w", err)
	}
	defer rows.Close()

	var requests []models.FriendRequest
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outgoing request: %w", err)
		}
		var req models.FriendRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode outgoing request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outgoing requests: %w", err)
	}
	return requests, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user     models.User
		friends  []byte
		requests []byte
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.AvatarURL,
		&user.LastSeen, &friends, &requests, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return models.User{}, err
	}
	if err := json.Unmarshal(friends, &user.Friends); err != nil {
		return models.User{}, fmt.Errorf("decode friends: %w", err)
	}
	if err := json.Unmarshal(requests, &user.FriendRequests); err != nil {
		return models.User{}, fmt.Errorf("decode friend requests: %w", err)
	}
	return user, nil
}

func marshalEmbedded(user models.User) (friends, requests []byte, err error) {
	if user.Friends == nil {
		user.Friends = []string{}
	}
	if user.FriendRequests == nil {
		user.FriendRequests = []models.FriendRequest{}
	}
	friends, err = json.Marshal(user.Friends)
	if err != nil {
		return nil, nil, fmt.Errorf("encode friends: %w", err)
	}
	requests, err = json.Marshal(user.FriendRequests)
	if err != nil {
		return nil, nil, fmt.Errorf("encode friend requests: %w", err)
	}
	return friends, requests, nil
}

// PostgresMessageRepository provides PostgreSQL-backed persistence for direct messages.
type PostgresMessageRepository struct {
	pool db.Pool
}

// NewPostgresMessageRepository constructs a message repository backed by PostgreSQL.
func NewPostgresMessageRepository(pool db.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Create persists a new message.
func (r *PostgresMessageRepository) Create(ctx context.Context, msg models.Message) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO messages (id, sender, receiver, body, status, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, msg.ID, msg.Sender, msg.Receiver, msg.Text, msg.Status, msg.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// ListBetween returns the full conversation between two users, oldest first.
func (r *PostgresMessageRepository) ListBetween(ctx context.Context, a, b string) ([]models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, sender, receiver, body, status, sent_at
        FROM messages
        WHERE (sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1)
        ORDER BY sent_at, id
    `, a, b)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &msg.Text, &msg.Status, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// UpdateStatus advances a message status, guarded so it can only move
// forward and only at the hand of the message's receiver. Zero affected rows
// means the message is missing, addressed to someone else, or already at an
// equal or higher status; all three are normal for retried or misdirected
// acknowledgements.
func (r *PostgresMessageRepository) UpdateStatus(ctx context.Context, id int64, receiver string, status models.MessageStatus) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := fmt.Sprintf(`
        UPDATE messages
        SET status = $2
        WHERE id = $1 AND receiver = $3 AND %s < %s
    `, fmt.Sprintf(statusRankSQL, "status"), fmt.Sprintf(statusRankSQL, "$2"))

	tag, err := conn.Exec(ctx, query, id, status, receiver)
	if err != nil {
		return false, fmt.Errorf("update message status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteBetween removes the full conversation between two users.
func (r *PostgresMessageRepository) DeleteBetween(ctx context.Context, a, b string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        DELETE FROM messages
        WHERE (sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1)
    `, a, b)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}
