// Package controller is the typed client for one controller daemon. Each
// method maps to a single remote operation, runs it under that operation's
// deadline and retry policy, and decodes the result.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/danmuck/appctl/internal/call"
	"github.com/danmuck/appctl/internal/protocol"
	"github.com/danmuck/appctl/internal/transport"
)

// Client is a handle to one controller. It is immutable after construction
// and expects one call in flight at a time; use separate clients for
// parallel calls.
type Client struct {
	target   string
	secret   string
	timeouts Timeouts
	binding  transport.Binding
	exec     *call.Executor
}

// New binds a TLS transport to host:Port. No connection is opened until the
// first call.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(strings.TrimSpace(cfg.Host), strconv.Itoa(Port))
	binding, err := transport.NewTLSBinding(addr, cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("controller: bind %s: %w", addr, err)
	}
	return newClient(cfg, addr, binding), nil
}

// NewWithBinding builds a client over an existing binding. The host is still
// required and names the target in logs and failures.
func NewWithBinding(cfg Config, binding transport.Binding) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if binding == nil {
		return nil, fmt.Errorf("controller: binding required")
	}
	target := strings.TrimSpace(cfg.Host)
	if b, ok := binding.(*transport.TLSBinding); ok {
		target = b.Addr()
	}
	return newClient(cfg, target, binding), nil
}

func newClient(cfg Config, target string, binding transport.Binding) *Client {
	backoff := cfg.Transport.WithDefaults().Backoff
	return &Client{
		target:   target,
		secret:   cfg.Secret,
		timeouts: cfg.Timeouts.withDefaults(),
		binding:  binding,
		exec: call.New(call.Config{
			Target:      target,
			Logger:      cfg.Logger,
			Clock:       cfg.Clock,
			Backoff:     backoff,
			MaxAttempts: cfg.MaxAttempts,
		}),
	}
}

// Target returns the controller address.
func (c *Client) Target() string {
	return c.target
}

// invoke runs operation with args and the secret appended last.
func (c *Client) invoke(ctx context.Context, operation string, args ...any) (protocol.Result, error) {
	full := make([]any, 0, len(args)+1)
	full = append(full, args...)
	full = append(full, c.secret)

	deadline, retry := c.timeouts.Policy(operation)
	return c.exec.Execute(ctx, call.Descriptor{
		Operation: operation,
		Deadline:  deadline,
		Retry:     retry,
		Invoke: func(ctx context.Context) (protocol.Result, error) {
			return c.binding.Invoke(ctx, operation, full)
		},
	})
}

// decodeFailure reports a result that did not have the operation's shape.
func (c *Client) decodeFailure(operation string, err error) error {
	return &call.FailedNode{
		Target:    c.target,
		Operation: operation,
		Kind:      call.KindApplicationFailure,
		Attempts:  1,
		Cause:     err,
	}
}

func (c *Client) text(ctx context.Context, operation string, args ...any) (string, error) {
	res, err := c.invoke(ctx, operation, args...)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

func (c *Client) boolean(ctx context.Context, operation string) (bool, error) {
	res, err := c.invoke(ctx, operation)
	if err != nil {
		return false, err
	}
	v, err := res.Bool()
	if err != nil {
		return false, c.decodeFailure(operation, err)
	}
	return v, nil
}

func (c *Client) decode(ctx context.Context, operation string, v any, args ...any) error {
	res, err := c.invoke(ctx, operation, args...)
	if err != nil {
		return err
	}
	if err := res.Decode(v); err != nil {
		return c.decodeFailure(operation, err)
	}
	return nil
}

// SetParameters sends the deployment layout and options. It is not retried,
// and a reply carrying the error marker fails the call.
func (c *Client) SetParameters(ctx context.Context, layout protocol.Layout, options map[string]string) error {
	layoutJSON, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("controller: encode layout: %w", err)
	}
	if options == nil {
		options = map[string]string{}
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("controller: encode options: %w", err)
	}
	reply, err := c.text(ctx, protocol.MethodSetParameters, string(layoutJSON), string(optionsJSON))
	if err != nil {
		return err
	}
	if strings.Contains(reply, protocol.ErrorMarker) {
		return call.ApplicationFailure(c.target, protocol.MethodSetParameters, reply)
	}
	return nil
}

// UploadApp asks the controller to deploy an archive already on its disk and
// returns the reservation id.
func (c *Client) UploadApp(ctx context.Context, archivedFile, fileSuffix string) (string, error) {
	return c.text(ctx, protocol.MethodUploadApp, archivedFile, fileSuffix)
}

func (c *Client) GetAllPublicIPs(ctx context.Context) ([]string, error) {
	var ips []string
	if err := c.decode(ctx, protocol.MethodGetAllPublicIPs, &ips); err != nil {
		return nil, err
	}
	return ips, nil
}

func (c *Client) IsDoneInitializing(ctx context.Context) (bool, error) {
	return c.boolean(ctx, protocol.MethodIsDoneInitializing)
}

// GetProperty returns every property whose name matches propertyRegex.
func (c *Client) GetProperty(ctx context.Context, propertyRegex string) (map[string]string, error) {
	props := map[string]string{}
	if err := c.decode(ctx, protocol.MethodGetProperty, &props, propertyRegex); err != nil {
		return nil, err
	}
	return props, nil
}

func (c *Client) SetProperty(ctx context.Context, name, value string) (string, error) {
	return c.text(ctx, protocol.MethodSetProperty, name, value)
}

func (c *Client) SetNodeReadOnly(ctx context.Context, readOnly bool) (string, error) {
	return c.text(ctx, protocol.MethodSetNodeReadOnly, strconv.FormatBool(readOnly))
}

func (c *Client) PrimaryDBIsUp(ctx context.Context) (bool, error) {
	return c.boolean(ctx, protocol.MethodPrimaryDBIsUp)
}

func (c *Client) GetAppUploadStatus(ctx context.Context, reservationID string) (string, error) {
	return c.text(ctx, protocol.MethodGetAppUploadStatus, reservationID)
}

func (c *Client) GetClusterStatsJSON(ctx context.Context) (json.RawMessage, error) {
	return c.rawJSON(ctx, protocol.MethodGetClusterStats)
}

func (c *Client) GetNodeStatsJSON(ctx context.Context) (json.RawMessage, error) {
	return c.rawJSON(ctx, protocol.MethodGetNodeStats)
}

func (c *Client) rawJSON(ctx context.Context, operation string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.decode(ctx, operation, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) GetInstanceInfo(ctx context.Context) ([]protocol.InstanceInfo, error) {
	var instances []protocol.InstanceInfo
	if err := c.decode(ctx, protocol.MethodGetInstanceInfo, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// GetRequestInfo returns the request rate summary for a version key such as
// "guestbook_default_v1".
func (c *Client) GetRequestInfo(ctx context.Context, versionKey string) (protocol.RequestInfo, error) {
	var info protocol.RequestInfo
	if err := c.decode(ctx, protocol.MethodGetRequestInfo, &info, versionKey); err != nil {
		return protocol.RequestInfo{}, err
	}
	return info, nil
}

func (c *Client) UpdateCron(ctx context.Context, projectID string) (string, error) {
	return c.text(ctx, protocol.MethodUpdateCron, projectID)
}
