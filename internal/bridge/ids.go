package bridge

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func newContactID() string { return uuid.NewString() }

// Message ids sort by creation time, which keeps history order stable when
// two rows share a timestamp.
func newMessageID() string { return ulid.Make().String() }

func outboundMessageID(providerMessageID string) string {
	return "out:" + providerMessageID
}
