package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type endpoint struct {
	url  string
	http *resty.Client
}

func (ep *endpoint) call(ctx context.Context, method string, params []any, out any) error {
	var body rpcResponse
	resp, err := ep.http.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}).
		SetResult(&body).
		Post(ep.url)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: endpoint returned %s", method, resp.Status())
	}
	if body.Error != nil {
		return fmt.Errorf("%s: %w", method, body.Error)
	}
	if out != nil {
		if err := json.Unmarshal(body.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}
