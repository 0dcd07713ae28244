package identity

import (
	"sync"
	"time"
)

// EventType はセッション変化イベントの種別。
type EventType string

const (
	// EventSignedIn はサインインまたはサインアップによるセッション発行。
	EventSignedIn EventType = "signed_in"
	// EventSignedOut はサインアウトによるセッション破棄。
	EventSignedOut EventType = "signed_out"
	// EventRefreshed は透過的なトークンリフレッシュ。
	EventRefreshed EventType = "refreshed"
)

// Event は1件のセッション変化を表す。
type Event struct {
	Type   EventType
	UserID string
	At     time.Time
}

// Events はセッション変化イベントのブロードキャスタ。
// 購読者ごとに独立したチャネルを持ち、Subscribeが返す解除関数で購読を終了する。
// 購読者が追いついていない場合、そのイベントは破棄される（配信はベストエフォート）。
type Events struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewEvents はEventsを生成する。
func NewEvents() *Events {
	return &Events{subs: make(map[int]chan Event)}
}

// Subscribe はイベントチャネルと購読解除関数を返す。
// 解除関数は複数回呼んでも安全。
func (e *Events) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	ch := make(chan Event, 16)
	e.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(sub)
			}
		})
	}
	return ch, unsubscribe
}

// Publish は全購読者にイベントを配信する。
// 満杯のチャネルへの送信はブロックせずに破棄する。
func (e *Events) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
