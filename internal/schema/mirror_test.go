package schema_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/waitrain/waitrain/internal/schema"
	"github.com/waitrain/waitrain/internal/storage"
)

func TestMirroredSourcePrefersStoredCopy(t *testing.T) {
	body, err := schema.Encode(ordersSchema)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	store := &memoryStore{objects: map[string][]byte{"schema-cache/postgres/abc.json": body}}
	source := schema.MirroredSource{Source: failingSource(t), Store: store, Key: "schema-cache/postgres/abc.json"}

	got, err := source.Introspect(context.Background())
	if err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	if diff := cmp.Diff(ordersSchema, got); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
	if store.puts != 0 {
		t.Fatalf("puts = %d, want 0", store.puts)
	}
}

func TestMirroredSourceUploadsBuiltSchema(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	source := schema.MirroredSource{Source: staticSource(ordersSchema), Store: store, Key: "schema-cache/duckdb/def.json"}

	if _, err := source.Introspect(context.Background()); err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	uploaded, ok := store.objects["schema-cache/duckdb/def.json"]
	if !ok {
		t.Fatal("expected schema upload")
	}
	decoded, err := schema.Decode(bytes.NewReader(uploaded))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if diff := cmp.Diff(ordersSchema, decoded); diff != "" {
		t.Fatalf("uploaded schema mismatch (-want +got):\n%s", diff)
	}
}

func TestMirroredSourceToleratesStoreFailures(t *testing.T) {
	store := &memoryStore{getErr: errors.New("dial tcp: connection refused"), putErr: errors.New("access denied")}
	source := schema.MirroredSource{Source: staticSource(ordersSchema), Store: store, Key: "schema-cache/x.json"}

	got, err := source.Introspect(context.Background())
	if err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("schema = %#v", got)
	}
}

func TestMirroredSourcePropagatesSourceErrors(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	boom := errors.New("permission denied")
	source := schema.MirroredSource{
		Source: schema.SourceFunc(func(context.Context) (schema.Map, error) { return nil, boom }),
		Store:  store,
		Key:    "schema-cache/x.json",
	}
	if _, err := source.Introspect(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Introspect() error = %v", err)
	}
	if store.puts != 0 {
		t.Fatalf("puts = %d, want 0", store.puts)
	}
}

type memoryStore struct {
	objects map[string][]byte
	getErr  error
	putErr  error
	puts    int
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	if m.putErr != nil {
		return storage.ObjectInfo{}, m.putErr
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.puts++
	m.objects[key] = payload
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	payload, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}
