package docstore

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Subscription - регистрация постоянной подписки.
// Доставки одной подписке выполняются строго последовательно;
// одинаковый результат подряд не доставляется повторно.
type Subscription struct {
	fn   func([]Document)
	stop func()

	mu        sync.Mutex
	last      []Document
	delivered bool

	stopped    atomic.Bool
	inCallback atomic.Bool
	cancelOnce sync.Once

	hooksMu  sync.Mutex
	hooks    []func()
	hooksRan bool
}

// NewSubscription создаёт подписку; stop вызывается один раз при отмене
// и не должен ждать завершения доставки.
func NewSubscription(fn func([]Document), stop func()) *Subscription {
	return &Subscription{fn: fn, stop: stop}
}

// Deliver передаёт результат запроса в callback, если он изменился
// с прошлой доставки. Возвращает true, если callback был вызван.
func (s *Subscription) Deliver(docs []Document) bool {
	if s.stopped.Load() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// повторная проверка под мьютексом: Cancel мог завершиться, пока мы ждали
	if s.stopped.Load() {
		return false
	}
	if s.delivered && reflect.DeepEqual(s.last, docs) {
		return false
	}
	s.last = docs
	s.delivered = true

	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	s.fn(docs)
	return true
}

// Cancel снимает подписку. Повторный вызов безопасен.
// После возврата ни один новый вызов callback не начнётся. Вызов, уже
// начатый до отмены, завершается сам; Cancel можно вызывать из callback.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.stopped.Store(true)
		if s.stop != nil {
			s.stop()
		}

		s.hooksMu.Lock()
		hooks := s.hooks
		s.hooks, s.hooksRan = nil, true
		s.hooksMu.Unlock()
		for _, hook := range hooks {
			hook()
		}
	})

	// callback уже выполняется (возможно, это он нас и вызвал)
	if s.inCallback.Load() {
		return
	}
	// ждём доставку, которая прошла проверку stopped, но ещё не вызвала fn
	s.mu.Lock()
	s.mu.Unlock() //nolint:staticcheck
}

// AfterStop регистрирует fn, которая выполнится один раз при отмене подписки,
// кем бы она ни была отменена. Для уже отмененной подписки fn выполняется сразу.
func (s *Subscription) AfterStop(fn func()) {
	s.hooksMu.Lock()
	if !s.hooksRan {
		s.hooks = append(s.hooks, fn)
		s.hooksMu.Unlock()
		return
	}
	s.hooksMu.Unlock()
	fn()
}

// Stopped сообщает, была ли подписка отменена
func (s *Subscription) Stopped() bool {
	return s.stopped.Load()
}
