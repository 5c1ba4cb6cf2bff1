package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMongoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	cfg := MongoConfig{
		URI:        os.Getenv("MONGO_URI"),
		Database:   "volqos_test",
		Collection: "qos_" + uuid.NewString(),
		Timeout:    2 * time.Second,
	}
	s, err := NewMongoStore(cfg)
	if err != nil {
		t.Skipf("skipping: MongoDB client: %v", err)
	}
	defer s.Close(context.Background())

	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("skipping: MongoDB not available: %v", err)
	}
	defer s.col.Drop(context.Background())

	testStore(t, s)
}
