package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type receiptRepository struct {
	db *DB
}

func NewReceiptRepository(db *DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) CreateReceipt(ctx context.Context, receipt Receipt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receipts (id, filename, stored_path, size, content_type, data_id, description, auto_description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, receipt.ID, receipt.Filename, receipt.StoredPath, receipt.Size, receipt.ContentType,
		receipt.DataID, receipt.Description, receipt.AutoDescription, receipt.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// GetReceipt returns nil without error when no receipt has the id.
func (r *receiptRepository) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	var receipt Receipt
	err := r.db.QueryRowContext(ctx, `
		SELECT id, filename, stored_path, size, content_type, data_id, description, auto_description, created_at
		FROM receipts
		WHERE id = ?
	`, id).Scan(
		&receipt.ID, &receipt.Filename, &receipt.StoredPath, &receipt.Size, &receipt.ContentType,
		&receipt.DataID, &receipt.Description, &receipt.AutoDescription, &receipt.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return &receipt, nil
}

// ListReceipts returns the newest receipts first, optionally only those for one dataset.
func (r *receiptRepository) ListReceipts(ctx context.Context, dataID string, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, stored_path, size, content_type, data_id, description, auto_description, created_at
		FROM receipts
		WHERE (? = '' OR data_id = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, dataID, dataID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	receipts := []Receipt{}
	for rows.Next() {
		var receipt Receipt
		err := rows.Scan(
			&receipt.ID, &receipt.Filename, &receipt.StoredPath, &receipt.Size, &receipt.ContentType,
			&receipt.DataID, &receipt.Description, &receipt.AutoDescription, &receipt.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, receipt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipt rows: %w", err)
	}

	return receipts, nil
}

func (r *receiptRepository) GetReceiptCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM receipts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get receipt count: %w", err)
	}
	return count, nil
}
