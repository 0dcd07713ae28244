package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/crotonn/writers-backend/internal/middleware"
	"github.com/crotonn/writers-backend/internal/model"
	"github.com/crotonn/writers-backend/internal/order"
	"github.com/go-chi/chi/v5"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	Create(ctx context.Context, clientID string, input order.CreateOrderInput) (*model.Order, error)
	List(ctx context.Context, userID string, role model.Role, status model.OrderStatus) ([]*model.Order, error)
	Get(ctx context.Context, userID string, role model.Role, orderID string) (*order.OrderDetail, error)
	PostMessage(ctx context.Context, userID string, role model.Role, orderID, content string) (*model.OrderMessage, error)
	ListMessages(ctx context.Context, userID string, role model.Role, orderID string) ([]*model.OrderMessage, error)
}

// OrderHandler は注文関連のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

// createOrderRequest は注文作成のリクエストボディ。
type createOrderRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Subject       string    `json:"subject"`
	PaperType     string    `json:"paper_type"`
	AcademicLevel string    `json:"academic_level"`
	Pages         int       `json:"pages"`
	Deadline      time.Time `json:"deadline"`
}

// orderResponse は注文のJSON表現。
type orderResponse struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	WriterID      string    `json:"writer_id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Subject       string    `json:"subject"`
	PaperType     string    `json:"paper_type"`
	AcademicLevel string    `json:"academic_level"`
	Pages         int       `json:"pages"`
	Deadline      time.Time `json:"deadline"`
	Status        string    `json:"status"`
	Price         float64   `json:"price"`
	Progress      int       `json:"progress"`
	CreatedAt     time.Time `json:"created_at"`
}

// progressResponse は進捗エントリのJSON表現。
type progressResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// messageResponse は注文メッセージのJSON表現。
type messageResponse struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	SenderID   string    `json:"sender_id"`
	SenderRole string    `json:"sender_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// postMessageRequest はメッセージ投稿のリクエストボディ。
type postMessageRequest struct {
	Content string `json:"content"`
}

// CreateOrder は注文を作成する。
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("body"))
		return
	}

	o, err := h.service.Create(r.Context(), userID, order.CreateOrderInput{
		Title:         req.Title,
		Description:   req.Description,
		Subject:       req.Subject,
		PaperType:     req.PaperType,
		AcademicLevel: req.AcademicLevel,
		Pages:         req.Pages,
		Deadline:      req.Deadline,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toOrderResponse(o))
}

// ListOrders は閲覧者の注文一覧を返す。
// GET /api/orders?status=pending
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	if status == "all" {
		status = ""
	}

	orders, err := h.service.List(r.Context(), userID, role, model.OrderStatus(status))
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetOrder は注文の詳細を進捗履歴・メッセージ込みで返す。
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), userID, role, chi.URLParam(r, "id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}

	progress := make([]progressResponse, 0, len(detail.Progress))
	for _, p := range detail.Progress {
		progress = append(progress, progressResponse{
			ID:          p.ID,
			Status:      p.Status,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
		})
	}
	messages := make([]messageResponse, 0, len(detail.Messages))
	for _, m := range detail.Messages {
		messages = append(messages, toMessageResponse(m))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"order":    toOrderResponse(detail.Order),
		"progress": progress,
		"messages": messages,
	})
}

// Quote は注文の見積価格を返す。
// GET /api/orders/quote?pages=5&academic_level=University
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	pages, err := strconv.Atoi(r.URL.Query().Get("pages"))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPagesError(0))
		return
	}
	level := r.URL.Query().Get("academic_level")

	price, err := order.Quote(pages, level)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"pages":          pages,
		"academic_level": level,
		"price":          price,
	})
}

// ListMessages は注文のメッセージ一覧を返す。
// GET /api/orders/{id}/messages
func (h *OrderHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	messages, err := h.service.ListMessages(r.Context(), userID, role, chi.URLParam(r, "id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, toMessageResponse(m))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// PostMessage は注文にメッセージを投稿する。
// POST /api/orders/{id}/messages
func (h *OrderHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := callerFromContext(w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("content"))
		return
	}

	msg, err := h.service.PostMessage(r.Context(), userID, role, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toMessageResponse(msg))
}

// callerFromContext はコンテキストから認証済みの呼び出し元を取得する。
// 未認証の場合は401を書き込みfalseを返す。
func callerFromContext(w http.ResponseWriter, r *http.Request) (string, model.Role, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return "", "", false
	}
	role, _ := middleware.RoleFromContext(r.Context())
	return userID, role, true
}

// writeOrderError はサービス層のエラーをHTTPレスポンスに変換する。
func writeOrderError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("order operation failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	status := http.StatusBadRequest
	switch {
	case apiErr.Code == model.ErrCodeOrderNotFound:
		status = http.StatusNotFound
	case apiErr.Code == model.ErrCodeForbidden:
		status = http.StatusForbidden
	case apiErr.Category == "auth":
		status = http.StatusUnauthorized
	}

	middleware.WriteErrorResponse(w, status, apiErr)
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		ClientID:      o.ClientID,
		WriterID:      o.WriterID,
		Title:         o.Title,
		Description:   o.Description,
		Subject:       o.Subject,
		PaperType:     o.PaperType,
		AcademicLevel: o.AcademicLevel,
		Pages:         o.Pages,
		Deadline:      o.Deadline,
		Status:        string(o.Status),
		Price:         o.Price,
		Progress:      o.Progress,
		CreatedAt:     o.CreatedAt,
	}
}

func toMessageResponse(m *model.OrderMessage) messageResponse {
	return messageResponse{
		ID:         m.ID,
		OrderID:    m.OrderID,
		SenderID:   m.SenderID,
		SenderRole: string(m.SenderRole),
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
