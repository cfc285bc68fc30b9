package rabbitmq

import (
	"encoding/json"
	"fmt"
)

// Reply is the envelope of every RPC response.
type Reply struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *RemoteError    `json:"error,omitempty"`
}

// RemoteError is an error reported by the service that answered a request.
type RemoteError struct {
	Kind       string `json:"kind"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

// ClientFault reports whether the remote side blamed the request itself.
func (e *RemoteError) ClientFault() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func decodeReply(body []byte, resp any) error {
	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	if reply.Error != nil {
		return reply.Error
	}
	if resp == nil || len(reply.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Data, resp); err != nil {
		return fmt.Errorf("failed to decode reply data: %w", err)
	}
	return nil
}
