package model

import (
	"database/sql"
	"errors"

	"github.com/username/investfolio/backend/src/models"
)

var ErrOrderNotFound = errors.New("order not found")

const orderColumns = `id, isin, quantity, unit_price_eur, total_price_eur, order_date, price_source, venue, requested_date`

// InsertOrder stores a new order for the given user.
func InsertOrder(db *sql.DB, userID int, order models.Order) error {
	query := `
	INSERT INTO orders (id, user_id, isin, quantity, unit_price_eur, total_price_eur, order_date, price_source, venue, requested_date)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		order.ID,
		userID,
		order.ISIN,
		order.Quantity,
		order.UnitPriceEUR,
		order.TotalPriceEUR,
		order.OrderDate,
		nullString(order.PriceSource),
		nullString(order.Venue),
		nullString(order.RequestedDate),
	)
	return err
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	for rows.Next() {
		var order models.Order
		var priceSource, venue, requestedDate sql.NullString
		if err := rows.Scan(
			&order.ID,
			&order.ISIN,
			&order.Quantity,
			&order.UnitPriceEUR,
			&order.TotalPriceEUR,
			&order.OrderDate,
			&priceSource,
			&venue,
			&requestedDate,
		); err != nil {
			return nil, err
		}
		order.PriceSource = priceSource.String
		order.Venue = venue.String
		order.RequestedDate = requestedDate.String
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// GetOrdersByUserID returns every order of a user, newest first.
func GetOrdersByUserID(db *sql.DB, userID int) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? ORDER BY order_date DESC, created_at DESC`

	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetOrdersByUserIDAndISIN returns a user's orders for one instrument, newest first.
func GetOrdersByUserIDAndISIN(db *sql.DB, userID int, isin string) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? AND isin = ? ORDER BY order_date DESC, created_at DESC`

	rows, err := db.Query(query, userID, isin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetOrderByID retrieves one order, scoped to its owner.
func GetOrderByID(db *sql.DB, userID int, orderID string) (models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? AND id = ?`

	var order models.Order
	var priceSource, venue, requestedDate sql.NullString
	err := db.QueryRow(query, userID, orderID).Scan(
		&order.ID,
		&order.ISIN,
		&order.Quantity,
		&order.UnitPriceEUR,
		&order.TotalPriceEUR,
		&order.OrderDate,
		&priceSource,
		&venue,
		&requestedDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Order{}, ErrOrderNotFound
		}
		return models.Order{}, err
	}
	order.PriceSource = priceSource.String
	order.Venue = venue.String
	order.RequestedDate = requestedDate.String
	return order, nil
}

// DeleteOrder removes one order, scoped to its owner.
func DeleteOrder(db *sql.DB, userID int, orderID string) error {
	result, err := db.Exec(`DELETE FROM orders WHERE user_id = ? AND id = ?`, userID, orderID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
