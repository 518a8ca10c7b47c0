package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a row looked up by a natural key rather than its uuid.
type keyedRecord interface {
	*snapshotRecord | *credentialRecord

	recordID() string
	setRecordID(id string)
	naturalKey() string
}

func keyedHandlers[T keyedRecord](identifier string, newRecord func() T) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			id, err := uuid.Parse(strings.TrimSpace(record.recordID()))
			if err != nil {
				return uuid.Nil
			}
			return id
		},
		SetID: func(record T, id uuid.UUID) {
			if record != nil {
				record.setRecordID(id.String())
			}
		},
		GetIdentifier: func() string { return identifier },
		GetIdentifierValue: func(record T) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.naturalKey())
		},
	}
}

func snapshotHandlers() repository.ModelHandlers[*snapshotRecord] {
	return keyedHandlers("storage_key", func() *snapshotRecord { return &snapshotRecord{} })
}

func credentialHandlers() repository.ModelHandlers[*credentialRecord] {
	return keyedHandlers("subject", func() *credentialRecord { return &credentialRecord{} })
}

func (r *snapshotRecord) recordID() string        { return r.ID }
func (r *snapshotRecord) setRecordID(id string)   { r.ID = id }
func (r *snapshotRecord) naturalKey() string      { return r.StorageKey }
func (r *credentialRecord) recordID() string      { return r.ID }
func (r *credentialRecord) setRecordID(id string) { r.ID = id }
func (r *credentialRecord) naturalKey() string    { return r.Subject }
