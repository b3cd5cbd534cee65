// Package store is the SQLite-backed goal database the bot reads and writes
// through: goals, categories and the Telegram chat identities.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamir/goalbot/internal/domain"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCode is returned by LinkIdentity for an unknown verification code.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrAlreadyVerified is returned by LinkIdentity when the chat is already linked.
	ErrAlreadyVerified = errors.New("user has already verified")
)

type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and applies the schema.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open goal db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping goal db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for shared access.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users, boards, categories ---

// CreateUser inserts a user and returns its id.
func (s *Store) CreateUser(ctx context.Context, username string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, fmt.Errorf("username is required")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (username) VALUES (?)`, username)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

// UserExists reports whether a user with id exists.
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateBoard creates a board owned by ownerID.
func (s *Store) CreateBoard(ctx context.Context, title string, ownerID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO boards (title) VALUES (?)`, title)
	if err != nil {
		return 0, fmt.Errorf("create board: %w", err)
	}
	boardID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO board_participants (board_id, user_id, role) VALUES (?, ?, 1)`, boardID, ownerID); err != nil {
		return 0, fmt.Errorf("add board owner: %w", err)
	}
	return boardID, tx.Commit()
}

// AddParticipant adds (or re-roles) a user on a board.
func (s *Store) AddParticipant(ctx context.Context, boardID, userID int64, role int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_participants (board_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT(board_id, user_id) DO UPDATE SET role = excluded.role
	`, boardID, userID, role)
	return err
}

// CreateCategory creates a category on a board.
func (s *Store) CreateCategory(ctx context.Context, boardID, userID int64, title string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO goal_categories (board_id, user_id, title) VALUES (?, ?, ?)`, boardID, userID, title)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	return res.LastInsertId()
}

// DeleteCategory soft-deletes a category.
func (s *Store) DeleteCategory(ctx context.Context, categoryID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE goal_categories SET is_deleted = 1, updated_at = datetime('now') WHERE id = ?`, categoryID)
	return err
}

// --- Goals (the collaborator interface the dialogue engine calls) ---

// ListGoals returns the user's goals, leaving out archived goals and goals
// filed under deleted categories.
func (s *Store) ListGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.title
		FROM goals g
		JOIN goal_categories c ON c.id = g.category_id
		WHERE g.user_id = ? AND c.is_deleted = 0 AND g.status != ?
		ORDER BY g.id ASC
	`, userID, domain.GoalStatusArchived)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		var g domain.Goal
		if err := rows.Scan(&g.ID, &g.Title); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// ListCategories returns the non-deleted categories on boards the user
// participates in.
func (s *Store) ListCategories(ctx context.Context, userID int64) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.title
		FROM goal_categories c
		JOIN board_participants p ON p.board_id = c.board_id
		WHERE p.user_id = ? AND c.is_deleted = 0
		ORDER BY c.id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CreateGoal files a new goal for userID under categoryID.
func (s *Store) CreateGoal(ctx context.Context, userID, categoryID int64, title string) (int64, error) {
	var deleted bool
	err := s.db.QueryRowContext(ctx, `SELECT is_deleted FROM goal_categories WHERE id = ?`, categoryID).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && deleted) {
		return 0, fmt.Errorf("category %d: %w", categoryID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup category: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (user_id, category_id, title, status) VALUES (?, ?, ?, ?)`,
		userID, categoryID, title, domain.GoalStatusToDo)
	if err != nil {
		return 0, fmt.Errorf("create goal: %w", err)
	}
	return res.LastInsertId()
}

// SetGoalStatus updates a goal's status.
func (s *Store) SetGoalStatus(ctx context.Context, goalID int64, status int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE goals SET status = ?, updated_at = datetime('now') WHERE id = ?`, status, goalID)
	return err
}
