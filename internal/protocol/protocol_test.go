package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRequestRoundTripKeepsArgOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, Request{
		Method: MethodSetProperty,
		Args:   []any{"max_memory", "400", "s3cret"},
	}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	req, err := ReadRequest(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	if req.Method != MethodSetProperty || len(req.Args) != 3 {
		t.Fatalf("unexpected request: %+v", req)
	}
	name, err := req.StringArg(0)
	if err != nil || name != "max_memory" {
		t.Fatalf("arg 0: %q %v", name, err)
	}
	secret, err := req.Secret()
	if err != nil || secret != "s3cret" {
		t.Fatalf("secret: %q %v", secret, err)
	}
	if _, err := req.StringArg(3); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected malformed for missing arg, got %v", err)
	}
}

func TestWriteRequestRequiresMethod(t *testing.T) {
	if err := WriteRequest(&bytes.Buffer{}, Request{}); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestReadResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "string result", input: `{"result":"ok"}` + "\n", want: `"ok"`},
		{name: "list result", input: `{"result":["10.0.0.1"]}` + "\n", want: `["10.0.0.1"]`},
		{name: "closed stream", input: "", wantErr: ErrEmptyResponse},
		{name: "blank line", input: "\n", wantErr: ErrEmptyResponse},
		{name: "no result field", input: "{}\n", wantErr: ErrEmptyResponse},
		{name: "garbage", input: "<html>\n", wantErr: ErrMalformedEnvelope},
		{name: "missing newline", input: `{"result":true}`, want: `true`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ReadResponse(bufio.NewReader(strings.NewReader(tc.input)))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("read response: %v", err)
			}
			if string(res) != tc.want {
				t.Fatalf("unexpected result %s", res)
			}
		})
	}
}

func TestReadResponseFault(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFault(&buf, "unknown_method", "no such method"); err != nil {
		t.Fatalf("write fault: %v", err)
	}
	_, err := ReadResponse(bufio.NewReader(&buf))
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if fault.Code != "unknown_method" {
		t.Fatalf("unexpected fault: %+v", fault)
	}
}

func TestResultSentinel(t *testing.T) {
	if s, ok := StringResult(BadSecretResponse).Sentinel(); !ok || s != BadSecretResponse {
		t.Fatalf("bad secret not detected")
	}
	if _, ok := StringResult(InvalidRequestResponse).Sentinel(); !ok {
		t.Fatalf("invalid request not detected")
	}
	if _, ok := StringResult("OK").Sentinel(); ok {
		t.Fatalf("plain string flagged as sentinel")
	}
	if _, ok := Result(`["false: bad secret"]`).Sentinel(); ok {
		t.Fatalf("non-string result flagged as sentinel")
	}
}

func TestResultBoolAndDecode(t *testing.T) {
	for raw, want := range map[string]bool{`true`: true, `"false"`: false, `"True"`: true} {
		got, err := Result(raw).Bool()
		if err != nil || got != want {
			t.Fatalf("Bool(%s) = %v, %v", raw, got, err)
		}
	}
	if _, err := Result(`"maybe"`).Bool(); !errors.Is(err, ErrResultType) {
		t.Fatalf("expected ErrResultType, got %v", err)
	}

	var ips []string
	if err := Result(`"[\"10.0.0.1\",\"10.0.0.2\"]"`).Decode(&ips); err != nil || len(ips) != 2 {
		t.Fatalf("decode wrapped json: %v %v", ips, err)
	}
	ips = nil
	if err := Result(`["10.0.0.3"]`).Decode(&ips); err != nil || ips[0] != "10.0.0.3" {
		t.Fatalf("decode direct json: %v %v", ips, err)
	}
	if err := Result(`null`).Decode(&ips); !errors.Is(err, ErrResultType) {
		t.Fatalf("expected ErrResultType for null, got %v", err)
	}
}

func TestCatalogArity(t *testing.T) {
	for _, m := range Methods() {
		n, ok := Arity(m)
		if !ok || n < 1 {
			t.Fatalf("method %s missing arity", m)
		}
	}
	if _, ok := Arity("reboot"); ok {
		t.Fatalf("unexpected arity for unknown method")
	}
}
