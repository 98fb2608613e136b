package domain

import "errors"

var (
	ErrNotFound          = errors.New("document not found")
	ErrCredentialMissing = errors.New("no mailbox credential for owner")
	ErrPersistence       = errors.New("persistence failure")
	ErrSyncInProgress    = errors.New("sync already in progress for owner")
	ErrInvalidOwner      = errors.New("owner is required")
)
