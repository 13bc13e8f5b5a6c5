package qbsync

import (
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/docsync_backend/models"
)

// ErrIntegrationMissing means the tenant has no connected QuickBooks
// credential. User-actionable: connect the platform first.
var ErrIntegrationMissing = errors.New("no connected QuickBooks integration for this business")

// SchemaMismatchError means the extraction payload is missing its
// mandatory top-level shape. Fatal for the document.
type SchemaMismatchError struct {
	Detail string
}

func (e *SchemaMismatchError) Error() string {
	return "extraction schema mismatch: " + e.Detail
}

// MappingNotFoundError means a transaction was submitted without its
// prerequisite entity mapping. The mapping is never auto-created at
// submission time.
type MappingNotFoundError struct {
	EntityType models.EntityType
	InternalId int
}

func (e *MappingNotFoundError) Error() string {
	return fmt.Sprintf("no entity mapping for %s %d", e.EntityType, e.InternalId)
}

// ValidationError aggregates every rule violation found in a payload.
// All reasons are collected before failing; nothing short-circuits.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Reasons, "; ")
}
