package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteRequest writes one request line.
func WriteRequest(w io.Writer, req Request) error {
	if strings.TrimSpace(req.Method) == "" {
		return fmt.Errorf("%w: missing method", ErrMalformedEnvelope)
	}
	if req.Args == nil {
		req.Args = []any{}
	}
	return writeEnvelope(w, req)
}

// WriteResponse writes one response line.
func WriteResponse(w io.Writer, resp Response) error {
	return writeEnvelope(w, resp)
}

// WriteResult writes a successful response carrying v.
func WriteResult(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteResponse(w, Response{Result: raw})
}

// WriteFault writes a fault response.
func WriteFault(w io.Writer, code, message string) error {
	return WriteResponse(w, Response{Fault: &Fault{Code: code, Message: message}})
}

func writeEnvelope(w io.Writer, env any) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}
