// Package order は論文発注のドメインロジックを提供する。
package order

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/crotonn/writers-backend/internal/authz"
	"github.com/crotonn/writers-backend/internal/model"
	"github.com/crotonn/writers-backend/internal/repository"
	"github.com/crotonn/writers-backend/internal/security"
	"github.com/google/uuid"
)

// pricePerPage は1ページあたりの基本料金（USD）。
const pricePerPage = 15.0

// levelMultipliers は学術レベルごとの料金係数。
var levelMultipliers = map[string]float64{
	"High School": 1.0,
	"College":     1.2,
	"University":  1.4,
	"Masters":     1.8,
	"PhD":         2.2,
}

// CreateOrderInput は注文作成の入力。
type CreateOrderInput struct {
	Title         string
	Description   string
	Subject       string
	PaperType     string
	AcademicLevel string
	Pages         int
	Deadline      time.Time
}

// OrderDetail は注文詳細の応答。進捗履歴とメッセージを含む。
type OrderDetail struct {
	Order    *model.Order
	Progress []*model.ProgressUpdate
	Messages []*model.OrderMessage
}

// Service は注文のサービス層。
// 検証 → 価格算出 → 保存のフローと、閲覧時のアクセス制御を統括する。
type Service struct {
	orders    repository.OrderRepository
	messages  repository.MessageRepository
	sanitizer security.MessageSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	orders repository.OrderRepository,
	messages repository.MessageRepository,
	sanitizer security.MessageSanitizerService,
) *Service {
	return &Service{
		orders:    orders,
		messages:  messages,
		sanitizer: sanitizer,
	}
}

// Quote は注文の見積価格を算出する純関数。
// price = pages × 15 × 学術レベル係数。
// レベルが未知の場合とページ数が不正な場合はエラーを返す。
func Quote(pages int, academicLevel string) (float64, error) {
	if pages < 1 {
		return 0, model.NewInvalidPagesError(pages)
	}
	multiplier, ok := levelMultipliers[academicLevel]
	if !ok {
		return 0, model.NewInvalidLevelError(academicLevel)
	}
	return float64(pages) * pricePerPage * multiplier, nil
}

// Create は注文を検証して作成する。
// 価格はサーバー側で算出し、初回の進捗エントリを同時に記録する。
func (s *Service) Create(ctx context.Context, clientID string, input CreateOrderInput) (*model.Order, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	price, err := Quote(input.Pages, input.AcademicLevel)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	o := &model.Order{
		ID:            uuid.New().String(),
		ClientID:      clientID,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Subject:       strings.TrimSpace(input.Subject),
		PaperType:     input.PaperType,
		AcademicLevel: input.AcademicLevel,
		Pages:         input.Pages,
		Deadline:      input.Deadline,
		Status:        model.OrderStatusPending,
		Price:         price,
		Progress:      0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	initial := &model.ProgressUpdate{
		ID:          uuid.New().String(),
		OrderID:     o.ID,
		Status:      "Order Placed",
		Description: "Your order has been received and is awaiting writer assignment.",
		CreatedAt:   now,
	}

	if err := s.orders.Create(ctx, o, initial); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	slog.Info("order created",
		slog.String("order_id", o.ID),
		slog.String("client_id", clientID),
		slog.Int("pages", o.Pages),
		slog.Float64("price", o.Price),
	)

	return o, nil
}

// List は閲覧者のロールに応じた注文一覧を返す。
// clientは自分が発注した注文、writerは自分に割り当てられた注文、
// adminはclientと同じ絞り込みで閲覧する（管理向け全件一覧は非対象）。
// statusが空でない場合は状態で絞り込む。未知の状態はエラー。
func (s *Service) List(ctx context.Context, userID string, role model.Role, status model.OrderStatus) ([]*model.Order, error) {
	if status != "" && !model.ValidOrderStatus(status) {
		return nil, model.NewInvalidFilterError(string(status))
	}

	var (
		orders []*model.Order
		err    error
	)
	if role == model.RoleWriter {
		orders, err = s.orders.ListByWriterID(ctx, userID, status)
	} else {
		orders, err = s.orders.ListByClientID(ctx, userID, status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

// Get は注文の詳細（進捗履歴・メッセージ込み）を返す。
// 発注者本人・割り当てられたライター・adminのみ閲覧できる。
// 存在しない注文と閲覧権限のない注文はどちらもNotFoundとして扱う。
func (s *Service) Get(ctx context.Context, userID string, role model.Role, orderID string) (*OrderDetail, error) {
	o, err := s.findAccessible(ctx, userID, role, orderID)
	if err != nil {
		return nil, err
	}

	progress, err := s.orders.ListProgress(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order progress: %w", err)
	}

	messages, err := s.messages.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order messages: %w", err)
	}

	return &OrderDetail{
		Order:    o,
		Progress: progress,
		Messages: messages,
	}, nil
}

// PostMessage は注文にメッセージを追加する。
// 本文はサニタイズしてから保存する。サニタイズ後に空になる本文は拒否する。
// 閲覧権限のない注文へは投稿できない。
func (s *Service) PostMessage(ctx context.Context, userID string, role model.Role, orderID, content string) (*model.OrderMessage, error) {
	if _, err := s.findAccessible(ctx, userID, role, orderID); err != nil {
		return nil, err
	}

	clean := s.sanitizer.Sanitize(content)
	if clean == "" {
		return nil, model.NewMissingFieldError("message")
	}

	msg := &model.OrderMessage{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		SenderID:   userID,
		SenderRole: role,
		Content:    clean,
		CreatedAt:  time.Now(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create order message: %w", err)
	}

	return msg, nil
}

// ListMessages は注文のメッセージ一覧を古い順で返す。
func (s *Service) ListMessages(ctx context.Context, userID string, role model.Role, orderID string) ([]*model.OrderMessage, error) {
	if _, err := s.findAccessible(ctx, userID, role, orderID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order messages: %w", err)
	}

	return messages, nil
}

// findAccessible は注文を取得し、閲覧権限を確認する。
// 権限のない注文は存在の有無を漏らさないようNotFoundを返す。
func (s *Service) findAccessible(ctx context.Context, userID string, role model.Role, orderID string) (*model.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	if o == nil || !canView(o, userID, role) {
		return nil, model.NewOrderNotFoundError(orderID)
	}
	return o, nil
}

// canView は注文の閲覧権限を判定する。
func canView(o *model.Order, userID string, role model.Role) bool {
	if authz.IsAuthorized(role, model.RoleAdmin) {
		return true
	}
	return o.ClientID == userID || (o.WriterID != "" && o.WriterID == userID)
}

// validateCreateInput は注文作成入力の妥当性を検証する。
func validateCreateInput(input CreateOrderInput) error {
	required := []struct {
		field string
		value string
	}{
		{"title", input.Title},
		{"description", input.Description},
		{"subject", input.Subject},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return model.NewMissingFieldError(r.field)
		}
	}

	if !slices.Contains(model.PaperTypes, input.PaperType) {
		return model.NewInvalidPaperTypeError(input.PaperType)
	}
	if !slices.Contains(model.AcademicLevels, input.AcademicLevel) {
		return model.NewInvalidLevelError(input.AcademicLevel)
	}
	if input.Pages < 1 {
		return model.NewInvalidPagesError(input.Pages)
	}
	if input.Deadline.IsZero() || !input.Deadline.After(time.Now()) {
		return model.NewInvalidDeadlineError()
	}

	return nil
}
