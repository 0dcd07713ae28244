// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/crotonn/writers-backend/internal/model"
)

// ProfileRepository はIdentityミラー行の永続化インターフェース。
type ProfileRepository interface {
	// GetByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	GetByID(ctx context.Context, id string) (*model.Profile, error)

	// Insert はプロフィール行を冪等に作成する。
	// 既存IDへの挿入は黙って無視され、エラーにならない。
	Insert(ctx context.Context, profile *model.Profile) error
}

// OrderRepository は注文データの永続化インターフェース。
type OrderRepository interface {
	// Create は注文を作成し、初回の進捗エントリを同一トランザクションで記録する。
	Create(ctx context.Context, order *model.Order, initial *model.ProgressUpdate) error

	// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// ListByClientID は発注者の注文一覧を作成日時降順で返す。
	// statusが空の場合は全状態を対象とする。
	ListByClientID(ctx context.Context, clientID string, status model.OrderStatus) ([]*model.Order, error)

	// ListByWriterID はライターに割り当てられた注文一覧を作成日時降順で返す。
	ListByWriterID(ctx context.Context, writerID string, status model.OrderStatus) ([]*model.Order, error)

	// ListProgress は注文の進捗履歴を新しい順で返す。
	ListProgress(ctx context.Context, orderID string) ([]*model.ProgressUpdate, error)
}

// MessageRepository は注文メッセージの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, message *model.OrderMessage) error

	// ListByOrderID は注文のメッセージ一覧を古い順で返す。
	ListByOrderID(ctx context.Context, orderID string) ([]*model.OrderMessage, error)
}
