package mongo

import (
	"context"
	"errors"

	clientsmongo "goa.design/agentcall/features/runlog/mongo/clients/mongo"
	"goa.design/agentcall/runtime/agent/runlog"
)

// Store persists call events in MongoDB. It validates arguments before
// reaching the database and exposes the client health check so services can
// register the store with a clue health checker.
type Store struct {
	client clientsmongo.Client
}

var _ runlog.Store = (*Store)(nil)

// NewStore builds a Mongo-backed run log store using the provided client.
func NewStore(client clientsmongo.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// Name returns the name of the underlying client for health reporting.
func (s *Store) Name() string { return s.client.Name() }

// Ping checks connectivity with the database.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

// Append stores e and sets its ID.
func (s *Store) Append(ctx context.Context, e *runlog.Event) error {
	if e == nil {
		return errors.New("event is required")
	}
	if e.CallID == "" {
		return errors.New("call_id is required")
	}
	return s.client.Append(ctx, e)
}

// List returns the page of events of callID that follows cursor.
func (s *Store) List(ctx context.Context, callID string, cursor string, limit int) (runlog.Page, error) {
	if callID == "" {
		return runlog.Page{}, errors.New("call_id is required")
	}
	if limit <= 0 {
		return runlog.Page{}, errors.New("limit must be > 0")
	}
	return s.client.List(ctx, callID, cursor, limit)
}
