// Package mongo stores events as documents and runs lookups as aggregation
// pipelines.
//
// Documents mirror the SQL schema with the extra payload embedded as a
// binary field, so a purge removes the payload with its event.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/roach88/chronicle/internal/querydoc"
	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/session"
	"github.com/roach88/chronicle/internal/store"
)

// Options configures an Adapter.
type Options struct {
	URI        string
	Database   string
	Collection string
	MaxPool    uint64
	Compress   bool
}

// Adapter implements store.Adapter on a MongoDB collection.
type Adapter struct {
	opts     Options
	client   *mongo.Client
	coll     *mongo.Collection
	compiler *querydoc.Compiler
	codec    *record.Codec
}

var _ store.Adapter = (*Adapter)(nil)

type locationDoc struct {
	World string `bson:"world"`
	X     int    `bson:"x"`
	Y     int    `bson:"y"`
	Z     int    `bson:"z"`
}

type eventDoc struct {
	ID        string             `bson:"_id"`
	EventName string             `bson:"eventName"`
	Timestamp primitive.DateTime `bson:"timestamp"`
	Location  locationDoc        `bson:"location"`
	Actor     *primitive.Binary  `bson:"actor,omitempty"`
	Cause     string             `bson:"cause,omitempty"`
	Target    string             `bson:"target"`
	Extra     []byte             `bson:"extra,omitempty"`
}

type groupDoc struct {
	ID struct {
		EventName string            `bson:"eventName"`
		Target    string            `bson:"target"`
		Actor     *primitive.Binary `bson:"actor"`
		Cause     string            `bson:"cause"`
	} `bson:"_id"`
	Count  int64              `bson:"count"`
	Latest primitive.DateTime `bson:"latest"`
}

// New returns an unconnected adapter.
func New(opts Options) (*Adapter, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("mongo: empty URI")
	}
	if opts.Database == "" {
		opts.Database = "chronicle"
	}
	if opts.Collection == "" {
		opts.Collection = "events"
	}
	codec, err := record.NewCodec(opts.Compress)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	return &Adapter{opts: opts, compiler: querydoc.NewCompiler(), codec: codec}, nil
}

// NewWithCollection wraps an existing collection.
func NewWithCollection(coll *mongo.Collection, compress bool) (*Adapter, error) {
	codec, err := record.NewCodec(compress)
	if err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	return &Adapter{
		opts:     Options{Compress: compress},
		client:   coll.Database().Client(),
		coll:     coll,
		compiler: querydoc.NewCompiler(),
		codec:    codec,
	}, nil
}

func (a *Adapter) Name() string { return store.BackendMongo }

func (a *Adapter) Compiler() queryir.Compiler { return a.compiler }

// Connect dials the server and ensures the lookup indexes exist.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.coll != nil {
		return nil
	}
	clientOpts := options.Client().ApplyURI(a.opts.URI)
	if a.opts.MaxPool > 0 {
		clientOpts.SetMaxPoolSize(a.opts.MaxPool)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return mapError("connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return mapError("connect", err)
	}

	coll := client.Database(a.opts.Database).Collection(a.opts.Collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: querydoc.DocTimestamp, Value: -1}}},
		{Keys: bson.D{{Key: querydoc.DocWorld, Value: 1}, {Key: querydoc.DocX, Value: 1}, {Key: querydoc.DocZ, Value: 1}, {Key: querydoc.DocY, Value: 1}}},
		{Keys: bson.D{{Key: querydoc.DocActor, Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return mapError("create indexes", err)
	}

	a.client = client
	a.coll = coll
	slog.Debug("mongo connected", "database", a.opts.Database, "collection", a.opts.Collection)
	return nil
}

// TestConnection pings the primary.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if a.client == nil {
		return store.ErrNotConnected
	}
	return mapError("ping", a.client.Ping(ctx, readpref.Primary()))
}

// Close disconnects the client.
func (a *Adapter) Close() error {
	a.codec.Close()
	if a.client == nil {
		return nil
	}
	err := a.client.Disconnect(context.Background())
	a.client = nil
	a.coll = nil
	return err
}

// Write inserts a batch with one ordered InsertMany. MongoDB has no batch
// transaction here: on error, documents before the failing one remain.
func (a *Adapter) Write(ctx context.Context, batch []record.Event) (store.WriteResult, error) {
	if a.coll == nil {
		return store.WriteResult{}, store.ErrNotConnected
	}
	if len(batch) == 0 {
		return store.WriteResult{}, nil
	}
	docs := make([]any, len(batch))
	for i, e := range batch {
		d, err := a.toDoc(e)
		if err != nil {
			return store.WriteResult{}, fmt.Errorf("mongo: event %s: %w", e.ID, err)
		}
		docs[i] = d
	}
	res, err := a.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return store.WriteResult{}, mapError("write", err)
	}
	return store.WriteResult{Written: len(res.InsertedIDs)}, nil
}

func (a *Adapter) toDoc(e record.Event) (eventDoc, error) {
	d := eventDoc{
		ID:        e.ID,
		EventName: e.EventName,
		Timestamp: primitive.NewDateTimeFromTime(e.Timestamp),
		Location:  locationDoc{World: e.Location.World, X: e.Location.X, Y: e.Location.Y, Z: e.Location.Z},
		Target:    e.Target,
	}
	if id, ok := e.PrincipalID(); ok {
		v, err := querydoc.UUIDBinary(id)
		if err != nil {
			return eventDoc{}, err
		}
		bin := v.(primitive.Binary)
		d.Actor = &bin
	} else {
		d.Cause = e.Cause
	}
	extra, err := a.codec.Encode(e.Extra)
	if err != nil {
		return eventDoc{}, err
	}
	d.Extra = extra
	return d, nil
}

// Query runs a lookup pipeline.
func (a *Adapter) Query(ctx context.Context, s *session.Session, translate result.Translator) ([]result.Result, error) {
	if a.coll == nil {
		return nil, store.QueryError(store.ErrNotConnected)
	}
	p, err := a.compiler.CompilePipeline(s.Query(), s.Flags())
	if err != nil {
		return nil, store.QueryError(err)
	}
	cur, err := a.coll.Aggregate(ctx, p.Stages)
	if err != nil {
		return nil, store.QueryError(mapError("query", err))
	}
	defer cur.Close(ctx)

	var page []result.Result
	for cur.Next(ctx) {
		var r result.Result
		if p.Grouped {
			r, err = decodeGroup(cur)
		} else {
			r, err = a.decodeEvent(cur)
		}
		if err != nil {
			return nil, store.QueryError(err)
		}
		page = append(page, r)
	}
	if err := cur.Err(); err != nil {
		return nil, store.QueryError(mapError("query", err))
	}

	if err := store.Translate(ctx, translate, page); err != nil {
		return nil, store.QueryError(err)
	}
	return page, nil
}

func decodeGroup(cur *mongo.Cursor) (result.Result, error) {
	var g groupDoc
	if err := cur.Decode(&g); err != nil {
		return result.Result{}, fmt.Errorf("decode group: %w", err)
	}
	actor, err := binaryUUID(g.ID.Actor)
	if err != nil {
		return result.Result{}, err
	}
	return result.NewAggregate(g.ID.EventName, g.ID.Target, actor, g.ID.Cause, g.Count, g.Latest.Time().UTC()), nil
}

func (a *Adapter) decodeEvent(cur *mongo.Cursor) (result.Result, error) {
	var d eventDoc
	if err := cur.Decode(&d); err != nil {
		return result.Result{}, fmt.Errorf("decode event: %w", err)
	}
	e := record.Event{
		ID:        d.ID,
		EventName: d.EventName,
		Timestamp: d.Timestamp.Time().UTC(),
		Location:  record.Location{World: d.Location.World, X: d.Location.X, Y: d.Location.Y, Z: d.Location.Z},
		Cause:     d.Cause,
		Target:    d.Target,
	}
	actor, err := binaryUUID(d.Actor)
	if err != nil {
		return result.Result{}, err
	}
	if actor != uuid.Nil {
		e.Cause = actor.String()
	}
	if e.Extra, err = a.codec.Decode(d.Extra); err != nil {
		return result.Result{}, fmt.Errorf("event %s: %w", d.ID, err)
	}
	return result.NewComplete(e), nil
}

func binaryUUID(b *primitive.Binary) (uuid.UUID, error) {
	if b == nil || len(b.Data) == 0 {
		return uuid.Nil, nil
	}
	id, err := uuid.FromBytes(b.Data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("actor id: %w", err)
	}
	return id, nil
}

// Delete purges matching documents.
func (a *Adapter) Delete(ctx context.Context, q *queryir.Query) (store.DeleteResult, error) {
	if a.coll == nil {
		return store.DeleteResult{}, store.ErrNotConnected
	}
	filter, err := a.compiler.CompileFilter(q)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("mongo: %w", err)
	}
	res, err := a.coll.DeleteMany(ctx, filter)
	if err != nil {
		return store.DeleteResult{}, mapError("delete", err)
	}
	return store.DeleteResult{Deleted: res.DeletedCount}, nil
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("mongo %s: %w", op, err)
	}
	switch {
	case mongo.IsDuplicateKeyError(err):
		return store.NewStorageError("mongo "+op, store.ErrCodeConflict, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, mongo.ErrClientDisconnected):
		return store.NewStorageError("mongo "+op, store.ErrCodeUnavailable, err)
	}
	return store.NewStorageError("mongo "+op, store.ErrCodeInternal, err)
}
