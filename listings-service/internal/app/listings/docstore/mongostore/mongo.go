// Package mongostore - реализация docstore.Store поверх MongoDB.
// Транзакции и change streams требуют replica set (хватает и одного узла).
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"goodbites/listings-service/internal/app/listings/docstore"
	"goodbites/pkg/logger"
	"goodbites/pkg/metrics"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	defaultMaxTxAttempts    = 5
	defaultMaxCommitRetries = 3

	labelTransientTx   = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"

	// пауза перед переоткрытием упавшего change stream
	watchRetryDelay = time.Second
)

// Options - параметры подключения к коллекциям
type Options struct {
	MaxTxAttempts    int
	MaxCommitRetries int
	// ServiceName - метка для метрик
	ServiceName string
}

// Store работает с одной базой данных MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	opts   Options
	log    zerolog.Logger

	mu      sync.Mutex
	watches map[*docstore.Subscription]context.CancelFunc
	wg      sync.WaitGroup
}

var _ docstore.Store = (*Store)(nil)

// New открывает базу dbName и создаёт индексы под запросы сервиса.
// Ошибка создания индекса не фатальна: индекс мог уже существовать.
func New(ctx context.Context, client *mongo.Client, dbName string, opts Options) *Store {
	if opts.MaxTxAttempts <= 0 {
		opts.MaxTxAttempts = defaultMaxTxAttempts
	}
	if opts.MaxCommitRetries <= 0 {
		opts.MaxCommitRetries = defaultMaxCommitRetries
	}

	s := &Store{
		client:  client,
		db:      client.Database(dbName),
		opts:    opts,
		log:     logger.Component("mongostore"),
		watches: make(map[*docstore.Subscription]context.CancelFunc),
	}
	s.ensureIndexes(ctx)
	return s
}

func (s *Store) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		"listings": {
			{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category_idx")},
			{Keys: bson.D{{Key: "city", Value: 1}}, Options: options.Index().SetName("city_idx")},
			{Keys: bson.D{{Key: "price", Value: 1}}, Options: options.Index().SetName("price_idx")},
			{Keys: bson.D{{Key: "avgRating", Value: -1}}, Options: options.Index().SetName("avg_rating_idx")},
		},
		"reviews": {
			{
				Keys:    bson.D{{Key: "listing_id", Value: 1}, {Key: "timestamp", Value: -1}},
				Options: options.Index().SetName("listing_id_timestamp_idx"),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			s.log.Warn().Err(err).Str("collection", collection).Msg("Failed to create indexes")
		}
	}
}

func (s *Store) NewID() string {
	return primitive.NewObjectID().Hex()
}

func (s *Store) Find(ctx context.Context, q docstore.Query) (docs []docstore.Document, err error) {
	timer := metrics.NewStoreTimer(s.opts.ServiceName, metrics.StoreOpFind, q.Collection)
	defer func() { timer.Observe(err) }()

	return find(ctx, s.db.Collection(q.Collection), q)
}

func find(ctx context.Context, coll *mongo.Collection, q docstore.Query) ([]docstore.Document, error) {
	cursor, err := coll.Find(ctx, filterDoc(q.Filters), options.Find().SetSort(sortDoc(q)))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to find in %s: %w", q.Collection, err))
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, classify(fmt.Errorf("failed to decode %s: %w", q.Collection, err))
	}

	docs := make([]docstore.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(m))
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (doc docstore.Document, err error) {
	timer := metrics.NewStoreTimer(s.opts.ServiceName, metrics.StoreOpGet, collection)
	defer func() {
		if errors.Is(err, docstore.ErrNotFound) {
			timer.Observe(nil)
			return
		}
		timer.Observe(err)
	}()

	return getOne(ctx, s.db.Collection(collection), id)
}

func getOne(ctx context.Context, coll *mongo.Collection, id string) (docstore.Document, error) {
	var m bson.M
	err := coll.FindOne(ctx, idFilter(id)).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, classify(fmt.Errorf("failed to get %s/%s: %w", coll.Name(), id, err))
	}
	return toDocument(m), nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc docstore.Document) (id string, err error) {
	timer := metrics.NewStoreTimer(s.opts.ServiceName, metrics.StoreOpInsert, collection)
	defer func() { timer.Observe(err) }()

	return insertOne(ctx, s.db.Collection(collection), doc, s.NewID)
}

func insertOne(ctx context.Context, coll *mongo.Collection, doc docstore.Document, newID func() string) (string, error) {
	id := doc.ID
	if id == "" {
		id = newID()
	}

	data := make(bson.M, len(doc.Data)+1)
	for k, v := range doc.Data {
		data[k] = v
	}
	data[docstore.IDField] = id

	if _, err := coll.InsertOne(ctx, data); err != nil {
		return "", classify(fmt.Errorf("failed to insert into %s: %w", coll.Name(), err))
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields bson.M) (err error) {
	timer := metrics.NewStoreTimer(s.opts.ServiceName, metrics.StoreOpUpdate, collection)
	defer func() { timer.Observe(err) }()

	return updateOne(ctx, s.db.Collection(collection), id, fields)
}

func updateOne(ctx context.Context, coll *mongo.Collection, id string, fields bson.M) error {
	set := make(bson.M, len(fields))
	for k, v := range fields {
		if k == docstore.IDField {
			continue
		}
		set[k] = v
	}

	result, err := coll.UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return classify(fmt.Errorf("failed to update %s/%s: %w", coll.Name(), id, err))
	}
	if result.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// RunTransaction выполняет fn в транзакции со snapshot-чтением.
// Ошибки с меткой TransientTransactionError (в том числе WriteConflict)
// перезапускают fn целиком, UnknownTransactionCommitResult повторяет только коммит.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) (err error) {
	timer := metrics.NewStoreTimer(s.opts.ServiceName, metrics.StoreOpTx, "")
	defer func() { timer.Observe(err) }()

	sess, err := s.client.StartSession()
	if err != nil {
		return classify(fmt.Errorf("failed to start session: %w", err))
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	for attempt := 1; attempt <= s.opts.MaxTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", docstore.ErrUnavailable, err)
		}

		err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
			if err := sess.StartTransaction(txOpts); err != nil {
				return err
			}
			if err := fn(sc, &tx{store: s, ctx: sc}); err != nil {
				_ = sess.AbortTransaction(context.WithoutCancel(sc))
				return err
			}
			return s.commit(sc, sess)
		})
		if err == nil {
			return nil
		}
		if hasLabel(err, labelTransientTx) {
			s.log.Debug().Int("attempt", attempt).Err(err).Msg("Transaction conflict, retrying")
			continue
		}
		return classify(err)
	}
	return docstore.ErrConflict
}

func (s *Store) commit(ctx context.Context, sess mongo.Session) error {
	var err error
	for i := 0; i <= s.opts.MaxCommitRetries; i++ {
		err = sess.CommitTransaction(ctx)
		if err == nil || !hasLabel(err, labelUnknownCommit) {
			return err
		}
	}
	return err
}

func hasLabel(err error, label string) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel(label)
}

// classify приводит ошибки драйвера к ошибкам docstore.
// Ошибки docstore и ошибки fn пользователя возвращаются как есть.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrConflict) || errors.Is(err, docstore.ErrUnavailable) {
		return err
	}
	var se mongo.ServerError
	if errors.As(err, &se) || mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %w", docstore.ErrUnavailable, err)
	}
	return err
}

type tx struct {
	store *Store
	ctx   mongo.SessionContext
}

func (t *tx) Get(collection, id string) (docstore.Document, error) {
	return getOne(t.ctx, t.store.db.Collection(collection), id)
}

func (t *tx) Update(collection, id string, fields bson.M) error {
	return updateOne(t.ctx, t.store.db.Collection(collection), id, fields)
}

func (t *tx) Insert(collection string, doc docstore.Document) error {
	_, err := insertOne(t.ctx, t.store.db.Collection(collection), doc, t.store.NewID)
	return err
}

// Watch открывает change stream на коллекцию запроса и на каждое
// подходящее событие перевыполняет запрос целиком.
func (s *Store) Watch(ctx context.Context, q docstore.Query, fn func([]docstore.Document)) (*docstore.Subscription, error) {
	coll := s.db.Collection(q.Collection)

	stream, err := coll.Watch(ctx, watchPipeline(q.Filters), options.ChangeStream())
	if err != nil {
		return nil, classify(fmt.Errorf("failed to open change stream on %s: %w", q.Collection, err))
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	sub := docstore.NewSubscription(fn, cancel)

	s.mu.Lock()
	s.watches[sub] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(sub)
		s.runWatch(watchCtx, coll, q, stream, sub)
	}()

	return sub, nil
}

func (s *Store) forget(sub *docstore.Subscription) {
	s.mu.Lock()
	delete(s.watches, sub)
	s.mu.Unlock()
}

func (s *Store) runWatch(ctx context.Context, coll *mongo.Collection, q docstore.Query, stream *mongo.ChangeStream, sub *docstore.Subscription) {
	log := s.log.With().Str("collection", q.Collection).Logger()

	refresh := func() {
		docs, err := find(ctx, coll, q)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("Failed to refresh watched query")
			}
			return
		}
		sub.Deliver(docs)
	}

	// события после открытия stream не теряются: первый результат читается уже после него
	refresh()

	for {
		for stream.Next(ctx) {
			// пачку событий склеиваем в одно перечитывание
			for stream.RemainingBatchLength() > 0 && stream.Next(ctx) {
			}
			refresh()
		}

		closeErr := stream.Err()
		_ = stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}

		log.Warn().Err(closeErr).Msg("Change stream interrupted, reopening")
		if stream = s.reopen(ctx, coll, q, log); stream == nil {
			return
		}
		// пока stream был закрыт, результат мог измениться
		refresh()
	}
}

// reopen пытается открыть change stream заново, пока не отменён ctx
func (s *Store) reopen(ctx context.Context, coll *mongo.Collection, q docstore.Query, log zerolog.Logger) *mongo.ChangeStream {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchRetryDelay):
		}

		stream, err := coll.Watch(ctx, watchPipeline(q.Filters), options.ChangeStream())
		if err == nil {
			return stream
		}
		log.Error().Err(err).Msg("Failed to reopen change stream")
	}
}

// Close отменяет все подписки, дожидается их горутин и отключает клиента
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	subs := make([]*docstore.Subscription, 0, len(s.watches))
	for sub := range s.watches {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	s.wg.Wait()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

func filterDoc(filters []docstore.Filter) bson.D {
	out := bson.D{}
	for _, f := range filters {
		if id, ok := f.Value.(string); ok && f.Field == docstore.IDField {
			out = append(out, bson.E{Key: docstore.IDField, Value: idFilter(id)[docstore.IDField]})
			continue
		}
		out = append(out, bson.E{Key: f.Field, Value: f.Value})
	}
	return out
}

func sortDoc(q docstore.Query) bson.D {
	out := bson.D{}
	for _, sf := range q.Sort {
		out = append(out, bson.E{Key: sf.Field, Value: direction(sf.Desc)})
	}
	return append(out, bson.E{Key: docstore.IDField, Value: direction(q.TieBreakDesc())})
}

func direction(desc bool) int {
	if desc {
		return -1
	}
	return 1
}

// watchPipeline отсекает вставки, которые не попадают под фильтр.
// Обновления и удаления пропускаются всегда: документ мог покинуть результат.
func watchPipeline(filters []docstore.Filter) mongo.Pipeline {
	insertMatch := bson.D{{Key: "operationType", Value: "insert"}}
	for _, f := range filters {
		insertMatch = append(insertMatch, bson.E{Key: "fullDocument." + f.Field, Value: f.Value})
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"update", "replace", "delete"}}}}},
			insertMatch,
		}}}}},
	}
}

// idFilter ищет и по строковому _id, и по ObjectID: документы,
// созданные не через сервис, могут иметь _id типа ObjectID
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{docstore.IDField: bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{docstore.IDField: id}
}

func toDocument(m bson.M) docstore.Document {
	var id string
	switch v := m[docstore.IDField].(type) {
	case string:
		id = v
	case primitive.ObjectID:
		id = v.Hex()
	default:
		id = fmt.Sprint(v)
	}
	delete(m, docstore.IDField)
	return docstore.Document{ID: id, Data: m}
}
