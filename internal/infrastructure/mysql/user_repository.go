package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-settlement/internal/domain"
)

type MySQLUserRepository struct {
	db *sql.DB
}

func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

func (r *MySQLUserRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT id, name, email, phone FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.Name, &u.Email, &u.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &u, nil
}

func (r *MySQLUserRepository) GetDefaultAddress(ctx context.Context, userID string) (*domain.Address, error) {
	query := `
        SELECT id, user_id, full_name, phone, line1, line2, city, state, postal_code, country, is_default
        FROM addresses
        WHERE user_id = ? AND is_default = TRUE
        LIMIT 1
    `

	var a domain.Address
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.State, &a.PostalCode, &a.Country, &a.IsDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("default address for user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("default address for user %s: %w", userID, err)
	}
	return &a, nil
}
