package invalidation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// Message is the payload sent for one invalidated identity
type Message struct {
	Identity string    `json:"identity"`
	NodeID   string    `json:"node_id"`
	SentAt   time.Time `json:"sent_at"`
}

// NewNodeID returns a random id identifying this process on the bus
func NewNodeID() string {
	return uuid.New().String()
}

func encode(nodeID, identity string) ([]byte, error) {
	data, err := json.Marshal(Message{Identity: identity, NodeID: nodeID, SentAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invalidation: %w", err)
	}
	return data, nil
}

// dispatch decodes payload and calls fn unless the message came from
// nodeID itself. It reports whether fn was called.
func dispatch(nodeID string, payload []byte, fn func(string), logger interfaces.Logger) bool {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		if logger != nil {
			logger.Warn("Dropping malformed invalidation", map[string]interface{}{"error": err.Error()})
		}
		return false
	}
	if msg.Identity == "" || msg.NodeID == nodeID {
		return false
	}
	fn(msg.Identity)
	return true
}
