// Package mongo loads initial keys from a MongoDB collection. Every
// document contributes its integer "key" field.
package mongo

import (
	"context"
	"time"

	"github.com/JWilliamson45/chord/keysource"
	"github.com/JWilliamson45/chord/syncrun"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type Option struct {
	URI        string
	Database   string
	Collection string
	// Retries is how many more connection attempts follow a failed one.
	Retries int
	Logger  *zap.Logger
}

type Source struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

type keyDocument struct {
	Key int `bson:"key"`
}

func Connect(ctx context.Context, opt Option) (*Source, error) {
	if opt.URI == "" || opt.Database == "" || opt.Collection == "" {
		return nil, errors.New("mongo key source needs uri, database and collection")
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.L()
	}

	var (
		clt     *mongo.Client
		err     error
		attempt int
	)
	syncrun.FuncWithRandomStart(func(ctx context.Context) bool {
		attempt++
		clt, err = connect(ctx, opt.URI)
		if err != nil {
			logger.Warn("connect mongo", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err != nil && attempt <= opt.Retries
	}, syncrun.RandRestart(200*time.Millisecond, time.Second))(ctx)
	if err == nil && clt == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	return &Source{
		client:     clt,
		collection: clt.Database(opt.Database).Collection(opt.Collection),
		logger:     logger,
	}, nil
}

func connect(ctx context.Context, uri string) (*mongo.Client, error) {
	clt, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := clt.Ping(ctx, readpref.Primary()); err != nil {
		clt.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping mongo")
	}
	return clt, nil
}

func (source *Source) Keys(ctx context.Context) ([]int, error) {
	findOpt := options.Find().
		SetProjection(bson.D{{Key: "key", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := source.collection.Find(ctx, bson.D{}, findOpt)
	if err != nil {
		return nil, errors.Wrap(err, "find keys")
	}
	defer cursor.Close(ctx)

	var keys []int
	for cursor.Next(ctx) {
		var doc keyDocument
		if err := cursor.Decode(&doc); err != nil {
			source.logger.Warn("skip key document", zap.Error(err))
			continue
		}
		keys = append(keys, doc.Key)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate keys")
	}
	return keysource.Normalize(keys), nil
}

func (source *Source) Close(ctx context.Context) error {
	return source.client.Disconnect(ctx)
}
