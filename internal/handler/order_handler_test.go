package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crotonn/writers-backend/internal/middleware"
	"github.com/crotonn/writers-backend/internal/model"
	"github.com/crotonn/writers-backend/internal/order"
	"github.com/go-chi/chi/v5"
)

// mockOrderService はOrderServiceInterfaceのモック実装。
type mockOrderService struct {
	createFunc       func(ctx context.Context, clientID string, input order.CreateOrderInput) (*model.Order, error)
	listFunc         func(ctx context.Context, userID string, role model.Role, status model.OrderStatus) ([]*model.Order, error)
	getFunc          func(ctx context.Context, userID string, role model.Role, orderID string) (*order.OrderDetail, error)
	postMessageFunc  func(ctx context.Context, userID string, role model.Role, orderID, content string) (*model.OrderMessage, error)
	listMessagesFunc func(ctx context.Context, userID string, role model.Role, orderID string) ([]*model.OrderMessage, error)
}

var _ OrderServiceInterface = (*mockOrderService)(nil)

func (m *mockOrderService) Create(ctx context.Context, clientID string, input order.CreateOrderInput) (*model.Order, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, clientID, input)
	}
	return nil, nil
}

func (m *mockOrderService) List(ctx context.Context, userID string, role model.Role, status model.OrderStatus) ([]*model.Order, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID, role, status)
	}
	return nil, nil
}

func (m *mockOrderService) Get(ctx context.Context, userID string, role model.Role, orderID string) (*order.OrderDetail, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, role, orderID)
	}
	return nil, nil
}

func (m *mockOrderService) PostMessage(ctx context.Context, userID string, role model.Role, orderID, content string) (*model.OrderMessage, error) {
	if m.postMessageFunc != nil {
		return m.postMessageFunc(ctx, userID, role, orderID, content)
	}
	return nil, nil
}

func (m *mockOrderService) ListMessages(ctx context.Context, userID string, role model.Role, orderID string) ([]*model.OrderMessage, error) {
	if m.listMessagesFunc != nil {
		return m.listMessagesFunc(ctx, userID, role, orderID)
	}
	return nil, nil
}

// authedRequest は認証済みコンテキストつきのリクエストを生成する。
func authedRequest(method, path, body, userID string, role model.Role) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	ctx := middleware.ContextWithSession(req.Context(), sessionFor(userID, userID+"@example.com"), role)
	return req.WithContext(ctx)
}

// orderRouter はURLパラメータ解決つきでハンドラーを実行するためのルーター。
func orderRouter(h *OrderHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/orders", h.CreateOrder)
	r.Get("/api/orders", h.ListOrders)
	r.Get("/api/orders/quote", h.Quote)
	r.Get("/api/orders/{id}", h.GetOrder)
	r.Get("/api/orders/{id}/messages", h.ListMessages)
	r.Post("/api/orders/{id}/messages", h.PostMessage)
	return r
}

func TestCreateOrder_Valid_Returns201(t *testing.T) {
	deadline := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	svc := &mockOrderService{
		createFunc: func(ctx context.Context, clientID string, input order.CreateOrderInput) (*model.Order, error) {
			if clientID != "client-1" {
				t.Errorf("client ID = %q, want client-1", clientID)
			}
			return &model.Order{
				ID:            "o-1",
				ClientID:      clientID,
				Title:         input.Title,
				PaperType:     input.PaperType,
				AcademicLevel: input.AcademicLevel,
				Pages:         input.Pages,
				Deadline:      input.Deadline,
				Status:        model.OrderStatusPending,
				Price:         105,
			}, nil
		},
	}
	router := orderRouter(NewOrderHandler(svc))

	body, _ := json.Marshal(map[string]any{
		"title":          "Essay",
		"description":    "desc",
		"subject":        "CS",
		"paper_type":     "Essay",
		"academic_level": "University",
		"pages":          5,
		"deadline":       deadline,
	})
	req := authedRequest(http.MethodPost, "/api/orders", string(body), "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Result().StatusCode, http.StatusCreated, w.Body.String())
	}

	var resp orderResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.ID != "o-1" || resp.Status != "pending" || resp.Price != 105 {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateOrder_ValidationError_Returns400WithUnifiedBody(t *testing.T) {
	svc := &mockOrderService{
		createFunc: func(ctx context.Context, clientID string, input order.CreateOrderInput) (*model.Order, error) {
			return nil, model.NewMissingFieldError("title")
		},
	}
	router := orderRouter(NewOrderHandler(svc))

	req := authedRequest(http.MethodPost, "/api/orders", `{}`, "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Category != "validation" {
		t.Errorf("category = %q, want validation", body.Category)
	}
}

func TestCreateOrder_Anonymous_Returns401(t *testing.T) {
	router := orderRouter(NewOrderHandler(&mockOrderService{}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestListOrders_PassesStatusFilter(t *testing.T) {
	svc := &mockOrderService{
		listFunc: func(ctx context.Context, userID string, role model.Role, status model.OrderStatus) ([]*model.Order, error) {
			if status != model.OrderStatusCompleted {
				t.Errorf("status = %q, want completed", status)
			}
			return []*model.Order{{ID: "o-1", Status: model.OrderStatusCompleted}}, nil
		},
	}
	router := orderRouter(NewOrderHandler(svc))

	req := authedRequest(http.MethodGet, "/api/orders?status=completed", "", "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp []orderResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "o-1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestListOrders_AllFilter_MapsToEmpty(t *testing.T) {
	svc := &mockOrderService{
		listFunc: func(ctx context.Context, userID string, role model.Role, status model.OrderStatus) ([]*model.Order, error) {
			if status != "" {
				t.Errorf("status = %q, want empty", status)
			}
			return nil, nil
		},
	}
	router := orderRouter(NewOrderHandler(svc))

	req := authedRequest(http.MethodGet, "/api/orders?status=all", "", "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestGetOrder_NotFound_Returns404(t *testing.T) {
	svc := &mockOrderService{
		getFunc: func(ctx context.Context, userID string, role model.Role, orderID string) (*order.OrderDetail, error) {
			return nil, model.NewOrderNotFoundError(orderID)
		},
	}
	router := orderRouter(NewOrderHandler(svc))

	req := authedRequest(http.MethodGet, "/api/orders/missing", "", "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestGetOrder_ReturnsDetailWithProgressAndMessages(t *testing.T) {
	svc := &mockOrderService{
		getFunc: func(ctx context.Context, userID string, role model.Role, orderID string) (*order.OrderDetail, error) {
			return &order.OrderDetail{
				Order:    &model.Order{ID: orderID, ClientID: userID},
				Progress: []*model.ProgressUpdate{{ID: "p-1", OrderID: orderID, Status: "Order Placed"}},
				Messages: []*model.OrderMessage{{ID: "m-1", OrderID: orderID, Content: "hi"}},
			}, nil
		},
	}
	router := orderRouter(NewOrderHandler(svc))

	req := authedRequest(http.MethodGet, "/api/orders/o-1", "", "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp struct {
		Order    orderResponse      `json:"order"`
		Progress []progressResponse `json:"progress"`
		Messages []messageResponse  `json:"messages"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Order.ID != "o-1" || len(resp.Progress) != 1 || len(resp.Messages) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestQuote_ReturnsPrice(t *testing.T) {
	router := orderRouter(NewOrderHandler(&mockOrderService{}))

	req := authedRequest(http.MethodGet, "/api/orders/quote?pages=5&academic_level=University", "", "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Price != 105 {
		t.Errorf("price = %v, want 105", resp.Price)
	}
}

func TestQuote_InvalidPages_Returns400(t *testing.T) {
	router := orderRouter(NewOrderHandler(&mockOrderService{}))

	req := authedRequest(http.MethodGet, "/api/orders/quote?pages=abc&academic_level=College", "", "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestPostMessage_Returns201(t *testing.T) {
	svc := &mockOrderService{
		postMessageFunc: func(ctx context.Context, userID string, role model.Role, orderID, content string) (*model.OrderMessage, error) {
			return &model.OrderMessage{
				ID:         "m-1",
				OrderID:    orderID,
				SenderID:   userID,
				SenderRole: role,
				Content:    content,
			}, nil
		},
	}
	router := orderRouter(NewOrderHandler(svc))

	req := authedRequest(http.MethodPost, "/api/orders/o-1/messages",
		`{"content":"please hurry"}`, "client-1", model.RoleClient)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}

	var resp messageResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.OrderID != "o-1" || resp.SenderRole != "client" {
		t.Errorf("response = %+v", resp)
	}
}
