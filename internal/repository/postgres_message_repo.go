package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crotonn/writers-backend/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用した注文メッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, message *model.OrderMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO order_messages (id, order_id, sender_id, sender_role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		message.ID, message.OrderID, message.SenderID, string(message.SenderRole),
		message.Content, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListByOrderID は注文のメッセージ一覧を古い順で返す。
func (r *PostgresMessageRepo) ListByOrderID(ctx context.Context, orderID string) ([]*model.OrderMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, sender_id, sender_role, content, created_at
		 FROM order_messages
		 WHERE order_id = $1
		 ORDER BY created_at ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*model.OrderMessage
	for rows.Next() {
		m := &model.OrderMessage{}
		var role string
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.SenderRole = model.Role(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
