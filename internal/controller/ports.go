package controller

import (
	"context"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

// Transport is the part of the backend API the controller drives.
// *api.Client implements it.
type Transport interface {
	Catalog(ctx context.Context) (*catalog.Catalog, error)
	Price(ctx context.Context, inputs value.InputSet, version catalog.Version) (*api.PriceResult, error)
}

// SessionState is what survives a reload of the session.
type SessionState struct {
	Inputs    value.InputSet
	LastValid value.InputSet
	Version   catalog.Version
}

// Persister stores the session state under a fixed key.
// Load returns ok=false when nothing has been saved yet.
type Persister interface {
	Save(ctx context.Context, s SessionState) error
	Load(ctx context.Context) (s SessionState, ok bool, err error)
}

// Outcome classifies how a pricing request ended.
type Outcome string

const (
	OutcomePriced          Outcome = "priced"
	OutcomeFieldRejected   Outcome = "field_rejected"
	OutcomeVersionConflict Outcome = "version_conflict"
	OutcomeFailed          Outcome = "failed"
	OutcomeSuperseded      Outcome = "superseded"
)

// RequestRecord is one entry in the request log.
type RequestRecord struct {
	Seq        int64           `json:"seq"`
	Version    catalog.Version `json:"version"`
	InputsHash string          `json:"inputs_hash"`
	Outcome    Outcome         `json:"outcome"`
	Retry      bool            `json:"retry,omitempty"`
	Status     int             `json:"status,omitempty"` // HTTP status for StatusError outcomes
	Field      string          `json:"field,omitempty"`  // rejected field for OutcomeFieldRejected
	Detail     string          `json:"detail,omitempty"`
}

// RequestLog records the outcome of every pricing request.
type RequestLog interface {
	Record(ctx context.Context, r RequestRecord) error
}

type nopPersister struct{}

func (nopPersister) Save(context.Context, SessionState) error { return nil }

func (nopPersister) Load(context.Context) (SessionState, bool, error) {
	return SessionState{}, false, nil
}

type nopRequestLog struct{}

func (nopRequestLog) Record(context.Context, RequestRecord) error { return nil }
