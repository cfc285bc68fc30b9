package rabbitmq

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReply_Data(t *testing.T) {
	var out []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	err := decodeReply([]byte(`{"data":[{"id":1,"name":"Laptop"}]}`), &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].ID)
	assert.Equal(t, "Laptop", out[0].Name)
}

func TestDecodeReply_RemoteError(t *testing.T) {
	var out []int
	err := decodeReply([]byte(`{"error":{"kind":"VALIDATION","statusCode":400,"message":"unknown product 9"}}`), &out)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 400, remote.StatusCode)
	assert.True(t, remote.ClientFault())
	assert.Contains(t, err.Error(), "unknown product 9")
	assert.Nil(t, out)
}

func TestDecodeReply_Malformed(t *testing.T) {
	err := decodeReply([]byte(`not json`), nil)
	assert.Error(t, err)

	var remote *RemoteError
	assert.False(t, errors.As(err, &remote))
}

func TestDecodeReply_NilTarget(t *testing.T) {
	assert.NoError(t, decodeReply([]byte(`{"data":{"ok":true}}`), nil))
}

func TestRemoteError_ServerFault(t *testing.T) {
	err := &RemoteError{Kind: "PERSISTENCE", StatusCode: 500, Message: "down"}
	assert.False(t, err.ClientFault())
}

func TestReject(t *testing.T) {
	err := Reject(fmt.Errorf("bad payload"))
	assert.True(t, errors.Is(err, ErrReject))
	assert.Contains(t, err.Error(), "bad payload")
}
