package specs

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vkuznet/cevt/internal/ingesterr"
)

// unreachableClient points at a port nothing listens on, so Redis calls
// fail fast with a connection error rather than hanging or requiring a
// live server in tests.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
}

func TestRedisStoreSaveWrapsConnectionFailureAsIoError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rs := NewRedisStore(unreachableClient(), "specs:events", 0, math.NaN(), nil)
	s := New(math.NaN(), nil)
	s.FlatKeys = []string{"pt"}
	s.Min["pt"], s.Max["pt"] = 0, 1
	s.Finalize()

	err := rs.Save(ctx, s)
	if err == nil {
		t.Fatal("expected error saving to an unreachable redis server")
	}
	ingestErr, ok := err.(*ingesterr.Error)
	if !ok || ingestErr.Kind != ingesterr.IoError {
		t.Errorf("err = %v, want IoError", err)
	}
}

func TestRedisStoreLoadWrapsConnectionFailureAsSpecsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rs := NewRedisStore(unreachableClient(), "specs:events", 0, math.NaN(), nil)

	_, err := rs.Load(ctx)
	if err == nil {
		t.Fatal("expected error loading from an unreachable redis server")
	}
	ingestErr, ok := err.(*ingesterr.Error)
	if !ok || ingestErr.Kind != ingesterr.SpecsError {
		t.Errorf("err = %v, want SpecsError", err)
	}
}

func TestRedisStoreExistsFalseOnConnectionFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rs := NewRedisStore(unreachableClient(), "specs:events", 0, math.NaN(), nil)
	if rs.Exists(ctx) {
		t.Error("Exists() = true, want false when redis is unreachable")
	}
}
