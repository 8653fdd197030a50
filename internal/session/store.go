// Package session provides device-local persistence for the active
// session records of both authenticators.
package session

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

// Well-known record keys. The two authenticators use disjoint key sets
// and never write each other's records.
const (
	KeyPoolTokens        = "pool/tokens"
	KeyFederatedIdentity = "federated/identity"
	KeyFederatedIDToken  = "federated/id_token"
)

// ErrNotFound is returned by Get when no record exists under the key.
var ErrNotFound = errors.New("session: record not found")

// Store is a device-local key-value store for opaque serialized session
// records. Concurrent writers to the same key are last-write-wins.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Module provides the session store dependencies.
var Module = fx.Module("session",
	fx.Provide(
		fx.Annotate(
			NewSQLiteStore,
			fx.As(new(Store)),
		),
	),
)
