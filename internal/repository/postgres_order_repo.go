package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crotonn/writers-backend/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

const orderColumns = `id, client_id, COALESCE(writer_id, ''), title, description, subject,
	paper_type, academic_level, pages, deadline, status, price, progress, created_at, updated_at`

// Create は注文を作成し、初回の進捗エントリを同一トランザクションで記録する。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order, initial *model.ProgressUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var writerID any
	if order.WriterID != "" {
		writerID = order.WriterID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, client_id, writer_id, title, description, subject,
		 	paper_type, academic_level, pages, deadline, status, price, progress, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		order.ID, order.ClientID, writerID, order.Title, order.Description, order.Subject,
		order.PaperType, order.AcademicLevel, order.Pages, order.Deadline,
		string(order.Status), order.Price, order.Progress, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if initial != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_progress (id, order_id, status, description, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			initial.ID, initial.OrderID, initial.Status, initial.Description, initial.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert initial progress: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	return order, nil
}

// ListByClientID は発注者の注文一覧を作成日時降順で返す。
func (r *PostgresOrderRepo) ListByClientID(ctx context.Context, clientID string, status model.OrderStatus) ([]*model.Order, error) {
	return r.list(ctx, "client_id", clientID, status)
}

// ListByWriterID はライターに割り当てられた注文一覧を作成日時降順で返す。
func (r *PostgresOrderRepo) ListByWriterID(ctx context.Context, writerID string, status model.OrderStatus) ([]*model.Order, error) {
	return r.list(ctx, "writer_id", writerID, status)
}

// list は指定カラムで絞り込んだ注文一覧を返す。statusが空の場合は全状態。
func (r *PostgresOrderRepo) list(ctx context.Context, column, userID string, status model.OrderStatus) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// ListProgress は注文の進捗履歴を新しい順で返す。
func (r *PostgresOrderRepo) ListProgress(ctx context.Context, orderID string) ([]*model.ProgressUpdate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, status, description, created_at
		 FROM order_progress
		 WHERE order_id = $1
		 ORDER BY created_at DESC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var updates []*model.ProgressUpdate
	for rows.Next() {
		u := &model.ProgressUpdate{}
		if err := rows.Scan(&u.ID, &u.OrderID, &u.Status, &u.Description, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress: %w", err)
	}

	return updates, nil
}

// rowScanner はsql.Rowとsql.Rowsに共通のScanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOrder は1行分の注文をスキャンする。
func scanOrder(row rowScanner) (*model.Order, error) {
	order := &model.Order{}
	var status string
	err := row.Scan(
		&order.ID, &order.ClientID, &order.WriterID, &order.Title, &order.Description,
		&order.Subject, &order.PaperType, &order.AcademicLevel, &order.Pages,
		&order.Deadline, &status, &order.Price, &order.Progress,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = model.OrderStatus(status)
	return order, nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
