package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/danmuck/appctl/internal/call"
	"github.com/danmuck/appctl/internal/protocol"
)

// serialController admits one controller call at a time. A controller client
// is not safe for concurrent calls, while gin serves requests in parallel.
// Waiting requests give up when their context ends.
type serialController struct {
	inner Controller
	slot  chan struct{}
}

func newSerialController(inner Controller) *serialController {
	return &serialController{inner: inner, slot: make(chan struct{}, 1)}
}

func (s *serialController) acquire(ctx context.Context, op string) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		kind := call.KindTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			kind = call.KindCanceled
		}
		return &call.FailedNode{
			Target:    s.inner.Target(),
			Operation: op,
			Kind:      kind,
			Cause:     ctx.Err(),
		}
	}
}

func (s *serialController) release() {
	<-s.slot
}

func (s *serialController) Target() string {
	return s.inner.Target()
}

func (s *serialController) GetAllPublicIPs(ctx context.Context) ([]string, error) {
	if err := s.acquire(ctx, protocol.MethodGetAllPublicIPs); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.GetAllPublicIPs(ctx)
}

func (s *serialController) IsDoneInitializing(ctx context.Context) (bool, error) {
	if err := s.acquire(ctx, protocol.MethodIsDoneInitializing); err != nil {
		return false, err
	}
	defer s.release()
	return s.inner.IsDoneInitializing(ctx)
}

func (s *serialController) PrimaryDBIsUp(ctx context.Context) (bool, error) {
	if err := s.acquire(ctx, protocol.MethodPrimaryDBIsUp); err != nil {
		return false, err
	}
	defer s.release()
	return s.inner.PrimaryDBIsUp(ctx)
}

func (s *serialController) GetProperty(ctx context.Context, propertyRegex string) (map[string]string, error) {
	if err := s.acquire(ctx, protocol.MethodGetProperty); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.GetProperty(ctx, propertyRegex)
}

func (s *serialController) GetAppUploadStatus(ctx context.Context, reservationID string) (string, error) {
	if err := s.acquire(ctx, protocol.MethodGetAppUploadStatus); err != nil {
		return "", err
	}
	defer s.release()
	return s.inner.GetAppUploadStatus(ctx, reservationID)
}

func (s *serialController) GetClusterStatsJSON(ctx context.Context) (json.RawMessage, error) {
	if err := s.acquire(ctx, protocol.MethodGetClusterStats); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.GetClusterStatsJSON(ctx)
}

func (s *serialController) GetNodeStatsJSON(ctx context.Context) (json.RawMessage, error) {
	if err := s.acquire(ctx, protocol.MethodGetNodeStats); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.GetNodeStatsJSON(ctx)
}

func (s *serialController) GetInstanceInfo(ctx context.Context) ([]protocol.InstanceInfo, error) {
	if err := s.acquire(ctx, protocol.MethodGetInstanceInfo); err != nil {
		return nil, err
	}
	defer s.release()
	return s.inner.GetInstanceInfo(ctx)
}

func (s *serialController) GetRequestInfo(ctx context.Context, versionKey string) (protocol.RequestInfo, error) {
	if err := s.acquire(ctx, protocol.MethodGetRequestInfo); err != nil {
		return protocol.RequestInfo{}, err
	}
	defer s.release()
	return s.inner.GetRequestInfo(ctx, versionKey)
}
