// Package userapi is a user store served over HTTP, backed by any
// database/sql driver.
package userapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bjaus/apimda"
)

// UserController manages users.
//
//apimda:controller /users
//apimda:tags users
type UserController struct {
	db    *sql.DB
	now   func() time.Time
	newID func() UUID
}

// NewUserController opens the users database.
//
//apimda:env USERS_DB_DRIVER USERS_DB_DSN
func NewUserController(driver, dsn string) (*UserController, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return NewUserControllerWithDB(db), nil
}

// NewUserControllerWithDB returns a controller using db.
func NewUserControllerWithDB(db *sql.DB) *UserController {
	return &UserController{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() UUID { return UUID(uuid.NewString()) },
	}
}

// Migrate creates the users table.
//
//apimda:init
func (c *UserController) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT,
		email TEXT NOT NULL,
		user_type TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}

// Get all users in the system, with optional filter by user type.
//
//apimda:get
//apimda:summary Get all users
//apimda:query userType
//apimda:param userType optional type of user to return
//apimda:returns array of all users, filtered by user type if specified
func (c *UserController) GetUsers(ctx context.Context, userType *UserType) ([]User, error) {
	filter := ""
	if userType != nil {
		filter = string(*userType)
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, email, user_type, created_at, updated_at FROM users
		WHERE ? = '' OR user_type = ? ORDER BY created_at, id`, filter, filter)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Get a user by ID.
//
//apimda:get /{userId}
//apimda:summary Get user by ID
//apimda:path userID userId
//apimda:param userID user identifier
//apimda:returns user with specified ID
func (c *UserController) GetUser(ctx context.Context, userID UUID) (User, error) {
	return c.find(ctx, userID)
}

// Create a new user.
//
//apimda:post
//apimda:summary Create user
//apimda:body user
//apimda:param user user to create
//apimda:returns created user
func (c *UserController) CreateUser(ctx context.Context, user UserPost) (User, error) {
	now := c.now()
	u := User{
		ID:        c.newID(),
		Name:      user.Name,
		Email:     user.Email,
		UserType:  user.UserType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, user_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.UserType, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// Replace (put) an existing user.
//
//apimda:put /{userId}
//apimda:summary Put user
//apimda:path userID userId
//apimda:body user
//apimda:param userID user identifier
//apimda:param user user to put
//apimda:returns updated user
func (c *UserController) PutUser(ctx context.Context, userID UUID, user UserPut) (User, error) {
	return c.update(ctx, userID, func(u *User) {
		u.Name = user.Name
		u.Email = user.Email
		u.UserType = user.UserType
	})
}

// Patch an existing user.
//
//apimda:patch /{userId}
//apimda:summary Patch user
//apimda:path userID userId
//apimda:body user
//apimda:param userID user identifier
//apimda:param user user to patch
//apimda:returns updated user
func (c *UserController) PatchUser(ctx context.Context, userID UUID, user UserPatch) (User, error) {
	return c.update(ctx, userID, func(u *User) {
		if user.Name != nil {
			u.Name = user.Name
		}
		if user.Email != nil {
			u.Email = *user.Email
		}
		if user.UserType != nil {
			u.UserType = *user.UserType
		}
	})
}

// Delete a user.
//
//apimda:delete /{userId}
//apimda:summary Delete user
//apimda:path userID userId
//apimda:param userID user identifier
func (c *UserController) DeleteUser(ctx context.Context, userID UUID) error {
	if _, err := c.find(ctx, userID); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

func (c *UserController) find(ctx context.Context, id UUID) (User, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, name, email, user_type, created_at, updated_at FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apimda.Error(http.StatusNotFound)
	}
	return u, err
}

func (c *UserController) update(ctx context.Context, id UUID, apply func(*User)) (User, error) {
	u, err := c.find(ctx, id)
	if err != nil {
		return User{}, err
	}
	apply(&u)
	u.UpdatedAt = c.now()
	_, err = c.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, user_type = ?, updated_at = ? WHERE id = ?`,
		u.Name, u.Email, u.UserType, u.UpdatedAt, u.ID)
	if err != nil {
		return User{}, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (User, error) {
	var (
		u    User
		name sql.NullString
	)
	if err := s.Scan(&u.ID, &name, &u.Email, &u.UserType, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("reading user: %w", err)
	}
	if name.Valid {
		u.Name = &name.String
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
