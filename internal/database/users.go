package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"citaplan/internal/models"
)

func (db *DB) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	var lastActivity sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, email, full_name, api_token, last_activity, created_at, updated_at
         FROM users WHERE api_token = ?`, token).
		Scan(&u.ID, &u.Email, &u.FullName, &u.APIToken, &lastActivity, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by token: %w", err)
	}
	if lastActivity.Valid {
		u.LastActivity = lastActivity.Time
	}
	return &u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	var lastActivity sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, email, full_name, api_token, last_activity, created_at, updated_at
         FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.APIToken, &lastActivity, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if lastActivity.Valid {
		u.LastActivity = lastActivity.Time
	}
	return &u, nil
}

func (db *DB) CreateOrUpdateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO users (email, full_name, api_token, last_activity, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(email) DO UPDATE SET full_name=excluded.full_name,
             api_token=excluded.api_token, updated_at=excluded.updated_at`,
		user.Email, user.FullName, user.APIToken, now, now, now)
	if err != nil {
		return fmt.Errorf("create or update user: %w", err)
	}
	if user.ID == 0 {
		if id, err := res.LastInsertId(); err == nil {
			user.ID = id
		}
	}
	return nil
}

func (db *DB) UpdateUserActivity(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET last_activity = ? WHERE id = ?`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update user activity: %w", err)
	}
	return nil
}
