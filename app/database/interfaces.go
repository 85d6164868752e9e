package database

import (
	"context"
)

type ReceiptRepository interface {
	CreateReceipt(ctx context.Context, receipt Receipt) error
	GetReceipt(ctx context.Context, id string) (*Receipt, error)
	ListReceipts(ctx context.Context, dataID string, limit int) ([]Receipt, error)
	GetReceiptCount(ctx context.Context) (int, error)
}

var _ ReceiptRepository = (*receiptRepository)(nil)
