// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, order, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodePasswordMismatch    = "PASSWORD_MISMATCH"
	ErrCodePasswordTooShort    = "PASSWORD_TOO_SHORT"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeInvalidPaperType    = "INVALID_PAPER_TYPE"
	ErrCodeInvalidLevel        = "INVALID_ACADEMIC_LEVEL"
	ErrCodeInvalidPages        = "INVALID_PAGES"
	ErrCodeInvalidDeadline     = "INVALID_DEADLINE"
	ErrCodeInvalidFilter       = "INVALID_FILTER"
	ErrCodeForbidden           = "FORBIDDEN"
)

// NewMissingFieldError は必須フィールド未入力エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("Required field is missing: %s", field),
		Category: "validation",
		Action:   "Please fill in all required fields.",
	}
}

// NewPasswordMismatchError はパスワード不一致エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "Passwords do not match.",
		Category: "validation",
		Action:   "Make sure the password and its confirmation are identical.",
	}
}

// NewPasswordTooShortError はパスワード長不足エラーを生成する。
func NewPasswordTooShortError(min int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("Password must be at least %d characters.", min),
		Category: "validation",
		Action:   "Choose a longer password.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// IdP側の失敗理由は区別せず、単一のメッセージに畳み込む。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
		Action:   "Check your credentials and try again.",
	}
}

// NewProviderUnavailableError はIdP到達不能エラーを生成する。
func NewProviderUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderUnavailable,
		Message:  "The authentication service is temporarily unavailable.",
		Category: "system",
		Action:   "Please try again in a few minutes.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("Order not found: %s", orderID),
		Category: "order",
		Action:   "Check the order ID and try again.",
	}
}

// NewInvalidPaperTypeError は無効な論文種別エラーを生成する。
func NewInvalidPaperTypeError(paperType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPaperType,
		Message:  fmt.Sprintf("Invalid paper type: %s", paperType),
		Category: "validation",
		Action:   "Choose one of: Essay, Research Paper, Case Study, Thesis, Other.",
	}
}

// NewInvalidLevelError は無効な学術レベルエラーを生成する。
func NewInvalidLevelError(level string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLevel,
		Message:  fmt.Sprintf("Invalid academic level: %s", level),
		Category: "validation",
		Action:   "Choose one of: High School, College, University, Masters, PhD.",
	}
}

// NewInvalidPagesError は無効なページ数エラーを生成する。
func NewInvalidPagesError(pages int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPages,
		Message:  fmt.Sprintf("Invalid number of pages: %d", pages),
		Category: "validation",
		Action:   "Pages must be at least 1.",
	}
}

// NewInvalidDeadlineError は無効な締切エラーを生成する。
func NewInvalidDeadlineError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDeadline,
		Message:  "Deadline must be in the future.",
		Category: "validation",
		Action:   "Pick a deadline after the current date.",
	}
}

// NewInvalidFilterError は無効なステータスフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("Invalid status filter: %s", filter),
		Category: "validation",
		Action:   "Use one of: all, pending, in_progress, completed, cancelled.",
	}
}

// NewForbiddenError はロール不一致による拒否エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have access to this resource.",
		Category: "auth",
		Action:   "Switch to an account with the required role.",
	}
}
