// Package memory - документное хранилище в памяти процесса.
// Используется в тестах и при локальном запуске (STORE_DRIVER=memory).
// Транзакции оптимистичные: чтения запоминают версию документа, при
// коммите версии сверяются, и при расхождении транзакция перезапускается.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"goodbites/listings-service/internal/app/listings/docstore"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultMaxTxAttempts = 5

var errCommitConflict = errors.New("commit conflict")

// Options - параметры хранилища
type Options struct {
	// MaxTxAttempts - лимит попыток транзакции, по умолчанию 5
	MaxTxAttempts int
	// BeforeCommit вызывается после fn и перед проверкой версий.
	// Ошибка прерывает транзакцию. Нужен тестам для имитации гонок и сбоев.
	BeforeCommit func(attempt int) error
}

type record struct {
	data    bson.M
	version uint64
}

type docKey struct {
	collection string
	id         string
}

type watch struct {
	query  docstore.Query
	sub    *docstore.Subscription
	signal chan struct{}
	quit   chan struct{}
}

// Store - реализация docstore.Store в памяти
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*record
	seq         uint64

	watchMu   sync.Mutex
	watches   map[uint64]*watch
	nextWatch uint64

	opts        Options
	unavailable atomic.Bool
	closed      atomic.Bool
}

var _ docstore.Store = (*Store)(nil)

// New создаёт пустое хранилище
func New(opts Options) *Store {
	if opts.MaxTxAttempts <= 0 {
		opts.MaxTxAttempts = defaultMaxTxAttempts
	}
	return &Store{
		collections: make(map[string]map[string]*record),
		watches:     make(map[uint64]*watch),
		opts:        opts,
	}
}

// SetUnavailable включает режим отказа: все операции возвращают ErrUnavailable
func (s *Store) SetUnavailable(v bool) {
	s.unavailable.Store(v)
	if !v {
		// изменения, пропущенные за время недоступности, доставляются сейчас
		s.signalAll()
	}
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", docstore.ErrUnavailable, err)
	}
	if s.unavailable.Load() || s.closed.Load() {
		return docstore.ErrUnavailable
	}
	return nil
}

func (s *Store) NewID() string {
	return primitive.NewObjectID().Hex()
}

func (s *Store) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(q), nil
}

// find выполняет запрос; вызывается под s.mu
func (s *Store) find(q docstore.Query) []docstore.Document {
	var out []docstore.Document
	for id, rec := range s.collections[q.Collection] {
		if matches(id, rec.data, q.Filters) {
			out = append(out, docstore.Document{ID: id, Data: copyData(rec.data)})
		}
	}

	tieDesc := q.TieBreakDesc()
	sort.SliceStable(out, func(i, j int) bool {
		for _, sf := range q.Sort {
			c := compareValues(out[i].Data[sf.Field], out[j].Data[sf.Field])
			if c == 0 {
				continue
			}
			if sf.Desc {
				return c > 0
			}
			return c < 0
		}
		if tieDesc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := s.check(ctx); err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Data: copyData(rec.data)}, nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}

	data, err := normalize(doc.Data)
	if err != nil {
		return "", err
	}
	id := doc.ID
	if id == "" {
		id = s.NewID()
	}

	s.mu.Lock()
	if _, exists := s.collections[collection][id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("document %s/%s already exists", collection, id)
	}
	s.put(collection, id, data)
	s.mu.Unlock()

	s.notify(collection)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields bson.M) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	patch, err := normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	rec, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	s.put(collection, id, merge(rec.data, patch))
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

// put записывает документ с новой версией; вызывается под s.mu
func (s *Store) put(collection, id string, data bson.M) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*record)
		s.collections[collection] = coll
	}
	s.seq++
	coll[id] = &record{data: data, version: s.seq}
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	for attempt := 1; attempt <= s.opts.MaxTxAttempts; attempt++ {
		if err := s.check(ctx); err != nil {
			return err
		}

		t := &tx{store: s, reads: make(map[docKey]uint64)}
		if err := fn(ctx, t); err != nil {
			return err
		}

		if s.opts.BeforeCommit != nil {
			if err := s.opts.BeforeCommit(attempt); err != nil {
				return err
			}
		}

		touched, err := s.commit(t)
		if errors.Is(err, errCommitConflict) {
			continue
		}
		if err != nil {
			return err
		}
		for _, collection := range touched {
			s.notify(collection)
		}
		return nil
	}
	return docstore.ErrConflict
}

// commit проверяет версии прочитанных документов и применяет записи
func (s *Store) commit(t *tx) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range t.reads {
		if s.versionOf(key) != version {
			return nil, errCommitConflict
		}
	}

	// сначала проверяем все записи, чтобы не применить транзакцию частично
	for _, w := range t.writes {
		_, exists := s.collections[w.key.collection][w.key.id]
		if w.insert && exists {
			return nil, fmt.Errorf("document %s/%s already exists", w.key.collection, w.key.id)
		}
		if !w.insert && !exists && !t.inserted(w.key) {
			return nil, docstore.ErrNotFound
		}
	}

	touched := make(map[string]struct{})
	for _, w := range t.writes {
		if w.insert {
			s.put(w.key.collection, w.key.id, w.data)
		} else {
			s.put(w.key.collection, w.key.id, merge(s.collections[w.key.collection][w.key.id].data, w.data))
		}
		touched[w.key.collection] = struct{}{}
	}

	out := make([]string, 0, len(touched))
	for c := range touched {
		out = append(out, c)
	}
	return out, nil
}

// versionOf возвращает версию документа, 0 - если документа нет
func (s *Store) versionOf(key docKey) uint64 {
	if rec, ok := s.collections[key.collection][key.id]; ok {
		return rec.version
	}
	return 0
}

func (s *Store) Watch(ctx context.Context, q docstore.Query, fn func([]docstore.Document)) (*docstore.Subscription, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	w := &watch{
		query:  q,
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}

	s.watchMu.Lock()
	s.nextWatch++
	id := s.nextWatch
	s.watchMu.Unlock()

	var quitOnce sync.Once
	w.sub = docstore.NewSubscription(fn, func() {
		s.watchMu.Lock()
		delete(s.watches, id)
		s.watchMu.Unlock()
		quitOnce.Do(func() { close(w.quit) })
	})

	s.watchMu.Lock()
	s.watches[id] = w
	s.watchMu.Unlock()

	// первая доставка - текущий результат
	w.signal <- struct{}{}
	go s.runWatch(w)

	return w.sub, nil
}

// runWatch перевыполняет запрос по сигналу об изменении коллекции.
// Сигналы склеиваются: пачка записей даёт одну доставку итогового состояния.
func (s *Store) runWatch(w *watch) {
	for {
		select {
		case <-w.quit:
			return
		case <-w.signal:
			// сигнал не теряется: SetUnavailable(false) будит все подписки заново
			if s.unavailable.Load() {
				continue
			}
			s.mu.RLock()
			docs := s.find(w.query)
			s.mu.RUnlock()
			w.sub.Deliver(docs)
		}
	}
}

func (s *Store) notify(collection string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for _, w := range s.watches {
		if w.query.Collection == collection {
			w.wake()
		}
	}
}

func (s *Store) signalAll() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for _, w := range s.watches {
		w.wake()
	}
}

func (w *watch) wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Close отменяет все подписки
func (s *Store) Close(_ context.Context) error {
	s.closed.Store(true)

	s.watchMu.Lock()
	subs := make([]*docstore.Subscription, 0, len(s.watches))
	for _, w := range s.watches {
		subs = append(subs, w.sub)
	}
	s.watchMu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	return nil
}

type write struct {
	key    docKey
	data   bson.M
	insert bool
}

type tx struct {
	store  *Store
	reads  map[docKey]uint64
	writes []write
}

func (t *tx) inserted(key docKey) bool {
	for _, w := range t.writes {
		if w.insert && w.key == key {
			return true
		}
	}
	return false
}

// Get читает зафиксированное состояние документа с учётом записей этой транзакции
func (t *tx) Get(collection, id string) (docstore.Document, error) {
	key := docKey{collection: collection, id: id}

	t.store.mu.RLock()
	rec, ok := t.store.collections[collection][id]
	var data bson.M
	if ok {
		data = copyData(rec.data)
		if _, seen := t.reads[key]; !seen {
			t.reads[key] = rec.version
		}
	} else if _, seen := t.reads[key]; !seen {
		t.reads[key] = 0
	}
	t.store.mu.RUnlock()

	for _, w := range t.writes {
		if w.key != key {
			continue
		}
		if w.insert {
			data = copyData(w.data)
			ok = true
		} else if ok {
			data = merge(data, w.data)
		}
	}

	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Data: data}, nil
}

func (t *tx) Update(collection, id string, fields bson.M) error {
	key := docKey{collection: collection, id: id}

	t.store.mu.RLock()
	_, exists := t.store.collections[collection][id]
	t.store.mu.RUnlock()
	if !exists && !t.inserted(key) {
		return docstore.ErrNotFound
	}

	patch, err := normalize(fields)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, write{key: key, data: patch})
	return nil
}

func (t *tx) Insert(collection string, doc docstore.Document) error {
	data, err := normalize(doc.Data)
	if err != nil {
		return err
	}
	id := doc.ID
	if id == "" {
		id = t.store.NewID()
	}
	t.writes = append(t.writes, write{key: docKey{collection: collection, id: id}, data: data, insert: true})
	return nil
}

// normalize прогоняет документ через BSON, чтобы в памяти лежали те же
// типы, что вернул бы MongoDB: int32/int64, float64, primitive.DateTime
func normalize(m bson.M) (bson.M, error) {
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	out := bson.M{}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	delete(out, docstore.IDField)
	return out, nil
}

func copyData(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func merge(base, patch bson.M) bson.M {
	out := copyData(base)
	for k, v := range patch {
		out[k] = v
	}
	return out
}
