package audit

import (
	"time"

	"github.com/google/uuid"
)

// AccountRecord is one row of the provisioned_accounts table: who created
// which account, and the attributes it was created with.
type AccountRecord struct {
	RecordID  uuid.UUID
	UID       string
	DN        string
	UIDNumber int
	SambaSID  string
	CreatedBy string
	CreatedAt time.Time
	// Attributes is the JSON encoding of the entry with password hashes masked.
	Attributes []byte
}
