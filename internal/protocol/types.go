package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Request is one client->controller call envelope.
type Request struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// ServerRequest is Request as decoded on the controller side.
type ServerRequest struct {
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args"`
}

// StringArg decodes positional argument i as a string.
func (r ServerRequest) StringArg(i int) (string, error) {
	if i < 0 || i >= len(r.Args) {
		return "", fmt.Errorf("%w: missing arg %d for %s", ErrMalformedEnvelope, i, r.Method)
	}
	var s string
	if err := json.Unmarshal(r.Args[i], &s); err != nil {
		return "", fmt.Errorf("%w: arg %d for %s: %v", ErrMalformedEnvelope, i, r.Method, err)
	}
	return s, nil
}

// Secret returns the trailing shared-secret argument.
func (r ServerRequest) Secret() (string, error) {
	return r.StringArg(len(r.Args) - 1)
}

// Fault is a controller-side failure raised instead of a result.
type Fault struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (f *Fault) Error() string {
	return fmt.Sprintf("controller fault %s: %s", f.Code, f.Message)
}

// Response is one controller->client envelope; exactly one of Result or Fault is set.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Fault  *Fault          `json:"fault,omitempty"`
}

// Result is a raw controller result. It is passed through unchanged by the
// call layer and decoded only by the operation that issued it.
type Result json.RawMessage

// StringResult encodes s as a result value.
func StringResult(s string) Result {
	raw, _ := json.Marshal(s)
	return Result(raw)
}

// ValueResult encodes v as a result value.
func ValueResult(v any) (Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Result(raw), nil
}

// Empty reports whether no value was returned.
func (r Result) Empty() bool {
	trimmed := bytes.TrimSpace(r)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Raw returns the undecoded JSON value.
func (r Result) Raw() json.RawMessage {
	return json.RawMessage(r)
}

// String returns the value when the result is a JSON string.
func (r Result) String() (string, bool) {
	trimmed := bytes.TrimSpace(r)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

// Text returns the string value, or the raw JSON text for non-string results.
func (r Result) Text() string {
	if s, ok := r.String(); ok {
		return s
	}
	return string(bytes.TrimSpace(r))
}

// Sentinel reports whether the result is one of the daemon rejection markers.
func (r Result) Sentinel() (string, bool) {
	s, ok := r.String()
	if !ok {
		return "", false
	}
	switch s {
	case BadSecretResponse, InvalidRequestResponse:
		return s, true
	}
	return "", false
}

// Bool decodes a JSON boolean or a "true"/"false" string.
func (r Result) Bool() (bool, error) {
	var b bool
	if err := json.Unmarshal(r, &b); err == nil {
		return b, nil
	}
	if s, ok := r.String(); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: want bool, got %s", ErrResultType, r.Text())
}

// Decode unmarshals the result into v. Results that carry JSON encoded
// inside a string are unwrapped once.
func (r Result) Decode(v any) error {
	if r.Empty() {
		return fmt.Errorf("%w: empty result", ErrResultType)
	}
	if s, ok := r.String(); ok {
		if err := json.Unmarshal([]byte(s), v); err == nil {
			return nil
		}
	}
	if err := json.Unmarshal(r, v); err != nil {
		return fmt.Errorf("%w: %v", ErrResultType, err)
	}
	return nil
}

// NodeLayout places a set of roles on one node.
type NodeLayout struct {
	Roles    []string `json:"roles" toml:"roles"`
	Nodes    int      `json:"nodes,omitempty" toml:"nodes"`
	Instance string   `json:"instance_type,omitempty" toml:"instance_type"`
	Disk     string   `json:"disk,omitempty" toml:"disk"`
}

// Layout is the deployment layout passed to set_parameters.
type Layout []NodeLayout

// InstanceInfo describes one running application instance.
type InstanceInfo struct {
	AppID    string `json:"appid"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Language string `json:"language"`
}

// RequestInfo is the request rate summary for one version.
type RequestInfo struct {
	Timestamp      float64 `json:"timestamp"`
	AvgRequestRate float64 `json:"avg_request_rate"`
	NumOfRequests  int64   `json:"num_of_requests"`
}
