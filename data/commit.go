package data

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// AnonymousAuthor is recorded when a transaction carries no user.
const AnonymousAuthor = "anonymous"

// CommitInfo is one entry of the store history.
type CommitInfo struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	AuthorEmail string    `json:"author_email,omitempty"`
	Message     string    `json:"message"`
	Time        time.Time `json:"time"`
	Paths       []string  `json:"paths,omitempty"`
}

// Changeset is the unit the store applies all-or-nothing.
type Changeset struct {
	Commit  CommitInfo
	Puts    []*Record
	Deletes []string
	// Blobs maps content hashes to payloads referenced by Puts.
	Blobs map[string][]byte
}

func (c *Changeset) Empty() bool {
	return len(c.Puts) == 0 && len(c.Deletes) == 0
}

// NewCommitID returns a time-ordered commit identifier.
func NewCommitID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// HashBlob returns the content address of a payload.
func HashBlob(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Revision is the state of one path as left by one commit.
type Revision struct {
	CommitID string    `json:"commit_id"`
	Time     time.Time `json:"time"`
	Deleted  bool      `json:"deleted"`
	Record   *Record   `json:"record,omitempty"`
}
