package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSession_Call_RoundTripsOverStdio(t *testing.T) {
	// cat echoes each line of the request straight back; since we
	// control the params, craft an echo script that rewrites it into a
	// well-formed response instead of assuming call order.
	script := `read line; printf '{"jsonrpc":"2.0","id":1,"result":{"ok":true}}\n'`

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	session, err := Start(ctx, "sh", []string{"-c", script}, nil)
	require.NoError(t, err)
	defer session.Close()

	result, err := session.Call("ping", map[string]any{"x": 1})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(result))
}

func TestSession_Call_ToolLevelErrorReturnsRPCError(t *testing.T) {
	script := `read line; printf '{"jsonrpc":"2.0","id":1,"error":{"code":400,"message":"bad request"}}\n'`

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	session, err := Start(ctx, "sh", []string{"-c", script}, nil)
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Call("ping", nil)
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 400, rpcErr.Code)
}

func TestSession_Call_ChildExitWithoutResponseIsStreamClosedError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	session, err := Start(ctx, "sh", []string{"-c", "read line; exit 0"}, nil)
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Call("ping", nil)
	require.Error(t, err)
}

func TestStart_MissingBinaryReturnsError(t *testing.T) {
	_, err := Start(context.Background(), "pipelinectl-rpc-nonexistent-binary-xyz", nil, nil)
	require.Error(t, err)
}

func TestSession_Call_IncrementsRequestIDPerCall(t *testing.T) {
	script := `while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  printf '{"jsonrpc":"2.0","id":%s,"result":{"seen":%s}}\n' "$id" "$id"
done`

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	session, err := Start(ctx, "sh", []string{"-c", script}, nil)
	require.NoError(t, err)
	defer session.Close()

	first, err := session.Call("ping", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"seen":1}`, string(first))

	second, err := session.Call("ping", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"seen":2}`, string(second))
}

func TestRPCError_ErrorMessageIncludesCodeAndMessage(t *testing.T) {
	err := &RPCError{Code: 404, Message: "not found"}
	require.Contains(t, err.Error(), "404")
	require.Contains(t, err.Error(), "not found")
}
