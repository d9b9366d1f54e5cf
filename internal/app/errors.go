package service

import (
	"errors"

	"github.com/okian/gcpstatus/internal/adapters/backend"
)

// Sentinel errors returned by Service operations.
var (
	// ErrEmptyCredential is the backend sentinel, re-exported so callers of the
	// service need not import the adapter.
	ErrEmptyCredential = backend.ErrEmptyCredential
	ErrSessionNotFound = errors.New("session not found")
	ErrNoFetcher       = errors.New("no health fetcher configured")
)

// Messages surfaced to the user.
const (
	msgEnterCredential = "Please enter an API key"
	msgFetchFailed     = "Failed to fetch health status: "
)
