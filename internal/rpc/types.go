package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// request is a JSON-RPC 2.0 request envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response is a JSON-RPC 2.0 response envelope. Result stays raw until the
// caller knows what to decode it into.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// ErrorCode makes RPCError match go-ethereum's rpc.Error interface.
func (e *RPCError) ErrorCode() int { return e.Code }

// limitExceeded is the code providers use for "request limit exceeded".
const limitExceeded = -32005

// HTTPError is returned when the endpoint answers with a non-200 status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// header is the part of a block object the locator reads. Number is a
// pointer because some nodes return null for the pending block.
type header struct {
	Number    *hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64  `json:"timestamp"`
}

// callArgs is the transaction object of eth_call. With no "to" the node runs
// Data as creation code.
type callArgs struct {
	Data hexutil.Bytes `json:"data"`
}
