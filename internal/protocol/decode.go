package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxMessageSize bounds one envelope line.
const MaxMessageSize = 4 * 1024 * 1024

// ReadRequest reads one request line on the controller side.
func ReadRequest(r *bufio.Reader) (ServerRequest, error) {
	line, err := readLine(r)
	if err != nil {
		return ServerRequest{}, err
	}
	var req ServerRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return ServerRequest{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if strings.TrimSpace(req.Method) == "" {
		return ServerRequest{}, fmt.Errorf("%w: missing method", ErrMalformedEnvelope)
	}
	return req, nil
}

// ReadResponse reads one response line. A closed stream or a blank line is
// ErrEmptyResponse; a fault envelope is returned as *Fault.
func ReadResponse(r *bufio.Reader) (Result, error) {
	line, err := readLine(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyResponse
		}
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if resp.Fault != nil {
		return nil, resp.Fault
	}
	if len(resp.Result) == 0 {
		return nil, ErrEmptyResponse
	}
	return Result(resp.Result), nil
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := r.ReadSlice('\n')
		buf.Write(chunk)
		if buf.Len() > MaxMessageSize {
			return nil, ErrMessageTooLarge
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(bytes.TrimSpace(buf.Bytes())) > 0 {
			break
		}
		return nil, err
	}
	line := bytes.TrimSpace(buf.Bytes())
	if len(line) == 0 {
		return nil, io.EOF
	}
	return line, nil
}
