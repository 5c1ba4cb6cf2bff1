package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
	"github.com/vnykmshr/volqos/pkg/volume"
)

// MongoConfig configures a MongoDB-backed store.
type MongoConfig struct {
	URI        string        // Connection string (default: "mongodb://localhost:27017")
	Username   string        // SCRAM username (empty for no auth)
	Password   string        // SCRAM password
	Database   string        // Database name (default: "volqos")
	Collection string        // Collection name (default: "qos")
	Timeout    time.Duration // Per-operation timeout (default: 2s)
}

func applyMongoDefaults(cfg MongoConfig) MongoConfig {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "volqos"
	}
	if cfg.Collection == "" {
		cfg.Collection = "qos"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	return cfg
}

// mongoLimits is the stored document. The volume name is the _id.
type mongoLimits struct {
	Volume    string `bson:"_id"`
	IOPSBurst int64  `bson:"iops_burst"`
	IOPSAvg   int64  `bson:"iops_avg"`
	BPSBurst  int64  `bson:"bps_burst"`
	BPSAvg    int64  `bson:"bps_avg"`
	Type      string `bson:"type,omitempty"`
	UpdatedAt int64  `bson:"updated_at"`
}

// MongoStore keeps one document per volume.
type MongoStore struct {
	client  *mongo.Client
	col     *mongo.Collection
	timeout time.Duration
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB with majority, journaled writes.
func NewMongoStore(cfg MongoConfig) (*MongoStore, error) {
	cfg = applyMongoDefaults(cfg)

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			AuthMechanism: "SCRAM-SHA-256",
			AuthSource:    "admin",
			Username:      cfg.Username,
			Password:      cfg.Password,
		})
	}
	journal := true
	wc := writeconcern.Majority()
	wc.Journal = &journal
	opts.SetWriteConcern(wc)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, &StoreError{Backend: "mongo", Operation: "connect", Err: err}
	}
	return &MongoStore{
		client:  client,
		col:     client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
	}, nil
}

// Ping checks connectivity.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(ctx, nil); err != nil {
		return &StoreError{Backend: "mongo", Operation: "ping", Err: err}
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, name string) (volume.Limits, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc mongoLimits
	err := s.col.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return volume.Limits{}, fmt.Errorf("volume %q: %w", name, qoserrors.ErrNotFound)
	}
	if err != nil {
		return volume.Limits{}, &StoreError{Backend: "mongo", Operation: "get", Err: err}
	}
	return volume.Limits{
		IOPSBurst: uint64(doc.IOPSBurst),
		IOPSAvg:   uint64(doc.IOPSAvg),
		BPSBurst:  uint64(doc.BPSBurst),
		BPSAvg:    uint64(doc.BPSAvg),
		Type:      volume.OpType(doc.Type),
	}, nil
}

// Set upserts the volume's document. Limits are validated to fit int64
// before they get here, which BSON needs.
func (s *MongoStore) Set(ctx context.Context, name string, limits volume.Limits) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := mongoLimits{
		Volume:    name,
		IOPSBurst: int64(limits.IOPSBurst),
		IOPSAvg:   int64(limits.IOPSAvg),
		BPSBurst:  int64(limits.BPSBurst),
		BPSAvg:    int64(limits.BPSAvg),
		Type:      string(limits.Type),
		UpdatedAt: time.Now().Unix(),
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return &StoreError{Backend: "mongo", Operation: "set", Err: err}
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": name}); err != nil {
		return &StoreError{Backend: "mongo", Operation: "delete", Err: err}
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
