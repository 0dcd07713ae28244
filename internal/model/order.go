// Package model はドメインモデルを定義する。
package model

import "time"

// OrderStatus は注文の状態を表す。
type OrderStatus string

const (
	// OrderStatusPending はライター割り当て待ちの状態。新規注文の初期値。
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusInProgress はライターが作業中の状態。
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusCompleted は納品済みの状態。
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled はキャンセル済みの状態。
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ValidOrderStatus はOrderStatusが定義済みのいずれかであるかを返す。
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// PaperTypes は注文可能な論文種別の一覧。
var PaperTypes = []string{"Essay", "Research Paper", "Case Study", "Thesis", "Other"}

// AcademicLevels は指定可能な学術レベルの一覧。
var AcademicLevels = []string{"High School", "College", "University", "Masters", "PhD"}

// Order は論文の発注を表す。
type Order struct {
	ID            string
	ClientID      string
	WriterID      string // 未割り当ての場合は空文字列
	Title         string
	Description   string
	Subject       string
	PaperType     string
	AcademicLevel string
	Pages         int
	Deadline      time.Time
	Status        OrderStatus
	Price         float64
	Progress      int // 0-100
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderMessage は注文に紐づく発注者とライターのやり取りを表す。
type OrderMessage struct {
	ID         string
	OrderID    string
	SenderID   string
	SenderRole Role
	Content    string
	CreatedAt  time.Time
}

// ProgressUpdate は注文の進捗履歴の1エントリを表す。
type ProgressUpdate struct {
	ID          string
	OrderID     string
	Status      string
	Description string
	CreatedAt   time.Time
}
