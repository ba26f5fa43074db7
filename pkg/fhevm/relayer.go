package fhevm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type RelayerError struct {
	Status  int
	Message string
}

func (e *RelayerError) Error() string {
	return fmt.Sprintf("relayer error %d: %s", e.Status, e.Message)
}

type relayer struct {
	baseURL string
	client  HTTPDoer
}

func newRelayer(baseURL string, client HTTPDoer) *relayer {
	if client == nil {
		client = http.DefaultClient
	}
	return &relayer{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (r *relayer) newRequest(ctx context.Context, method string, path string, o any) (*http.Request, error) {
	var body io.Reader
	if o != nil {
		if b, err := json.Marshal(o); err != nil {
			return nil, err
		} else {
			body = bytes.NewReader(b)
		}
	}

	if req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body); err != nil {
		return nil, err
	} else {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-Id", uuid.NewString())
		return req, nil
	}
}

func relayerCall[E any](ctx context.Context, r *relayer, method string, path string, o any) (*E, error) {
	var res RelayerResponse[E]

	if req, err := r.newRequest(ctx, method, path, o); err != nil {
		return nil, err
	} else if httpRes, err := r.client.Do(req); err != nil {
		return nil, fmt.Errorf("relayer %s %s: %w", method, path, err)
	} else {
		defer httpRes.Body.Close()

		if b, err := io.ReadAll(httpRes.Body); err != nil {
			return nil, err
		} else if err := json.Unmarshal(b, &res); err != nil {
			if httpRes.StatusCode < 200 || httpRes.StatusCode >= 300 {
				return nil, &RelayerError{Status: httpRes.StatusCode, Message: httpRes.Status}
			}
			return nil, fmt.Errorf("relayer %s %s: invalid json response: %v", method, path, err)
		} else if httpRes.StatusCode < 200 || httpRes.StatusCode >= 300 {
			message := res.Message
			if message == "" {
				message = httpRes.Status
			}
			return nil, &RelayerError{Status: httpRes.StatusCode, Message: message}
		} else if res.Response == nil {
			return nil, &RelayerError{Status: httpRes.StatusCode, Message: "relayer returned an empty response"}
		} else {
			return res.Response, nil
		}
	}
}

func (r *relayer) KeyURL(ctx context.Context) (*KeyURLResponse, error) {
	return relayerCall[KeyURLResponse](ctx, r, http.MethodGet, "/v1/keyurl", nil)
}

func (r *relayer) InputProof(ctx context.Context, req *InputProofRequest) (*InputProofResponse, error) {
	return relayerCall[InputProofResponse](ctx, r, http.MethodPost, "/v1/input-proof", req)
}

func (r *relayer) UserDecrypt(ctx context.Context, req *UserDecryptRequest) (*UserDecryptResponse, error) {
	return relayerCall[UserDecryptResponse](ctx, r, http.MethodPost, "/v1/user-decrypt", req)
}
