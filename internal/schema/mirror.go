package schema

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/waitrain/waitrain/internal/observability"
	"github.com/waitrain/waitrain/internal/storage"
)

// MirroredSource shares schema maps between instances through an object
// store. A stored copy is preferred over introspection, and freshly built
// maps are uploaded. Object store failures are logged and never fail the
// lookup.
type MirroredSource struct {
	Source Source
	Store  storage.ObjectStore
	Key    string
	Logger *slog.Logger
}

func (m MirroredSource) Introspect(ctx context.Context) (Map, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if stored, err := m.download(ctx); err == nil {
		observability.ObserveSchemaCacheLookup("object_store")
		return stored, nil
	} else if !errors.Is(err, storage.ErrObjectNotFound) {
		logger.WarnContext(ctx, "schema mirror download failed", slog.String("key", m.Key), slog.Any("error", err))
	}

	built, err := m.Source.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.upload(ctx, built); err != nil {
		logger.WarnContext(ctx, "schema mirror upload failed", slog.String("key", m.Key), slog.Any("error", err))
	}
	return built, nil
}

func (m MirroredSource) download(ctx context.Context) (Map, error) {
	reader, err := m.Store.Get(ctx, m.Key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return Decode(reader)
}

func (m MirroredSource) upload(ctx context.Context, built Map) error {
	body, err := Encode(built)
	if err != nil {
		return err
	}
	_, err = m.Store.Put(ctx, m.Key, bytes.NewReader(body), int64(len(body)), storage.PutOptions{ContentType: "application/json"})
	return err
}
