// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MessageSanitizerService は依頼者とライター間のメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 基本的な書式タグのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MessageSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// メッセージ保存前に使用される。
type MessageSanitizerService interface {
	// Sanitize はメッセージ本文をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, ul, ol, li, blockquote, pre, code, strong, em, a）のみを通過させ、
	// script, iframe, img, styleタグおよびon*イベント属性を除去する。
	// aタグのhref属性はhttpsスキームのみ許可され、
	// target="_blank"とrel="noopener noreferrer"が自動付与される。
	// 前後の空白は除去される。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// messageSanitizer はMessageSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type messageSanitizer struct {
	policy *bluemonday.Policy
}

// NewMessageSanitizer はMessageSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, blockquote, pre, code, strong, em, a
//   - 禁止タグ: script, iframe, img, style および全てのon*イベント属性
//   - aタグ: hrefはhttpsのみ、target="_blank" と rel="noopener noreferrer" を自動付与
func NewMessageSanitizer() *messageSanitizer {
	p := bluemonday.NewPolicy()

	// 許可タグの設定（属性なしのシンプルなタグ）
	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// aタグの設定:
	// - href属性を許可（httpsのみ）
	// - 相対URLは不許可
	// - target="_blank"とrel="noreferrer noopener"を強制付与
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &messageSanitizer{
		policy: p,
	}
}

// Sanitize はメッセージ本文をサニタイズして安全なHTMLを返す。
func (s *messageSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// インターフェース実装の確認
var _ MessageSanitizerService = (*messageSanitizer)(nil)
