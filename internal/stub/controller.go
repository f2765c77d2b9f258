package stub

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/appctl/internal/protocol"
	"github.com/danmuck/appctl/internal/stats"
	"github.com/google/uuid"
)

// State is the in-memory controller model behind the default handlers.
type State struct {
	mu           sync.Mutex
	PublicIPs    []string
	Initialized  bool
	PrimaryDBUp  bool
	ReadOnly     bool
	Properties   map[string]string
	Layout       protocol.Layout
	Options      map[string]string
	Uploads      map[string]string
	Archives     map[string]string
	Instances    []protocol.InstanceInfo
	RequestInfo  map[string]protocol.RequestInfo
	NodeStats    json.RawMessage
	ClusterStats json.RawMessage
	CronUpdates  []string
}

//go:embed haproxy_stats.csv
var haproxySample string

// NewState returns a small, initialized single-node deployment. Its proxy
// stats come from a recorded HAProxy table.
func NewState() *State {
	proxies, err := stats.ParseHAProxyCSV(strings.NewReader(haproxySample), nil, time.Now())
	if err != nil {
		panic(fmt.Sprintf("stub: embedded haproxy sample: %v", err))
	}
	node := stats.NodeStats{
		PublicIP:  "127.0.0.1",
		PrivateIP: "127.0.0.1",
		Roles:     []string{"shadow", "load_balancer"},
		CPU:       stats.CPU{Idle: 92.5, System: 2.5, User: 5.0, Count: 4},
		Memory:    stats.Memory{Total: 8 << 30, Available: 4 << 30, Used: 4 << 30},
		Loadavg:   stats.Loadavg{Last1Min: 0.2, Last5Min: 0.1, Last15Min: 0.05},
		Disk: stats.Disk{Partitions: []stats.Partition{
			{Mountpoint: "/", Total: 100 << 30, Free: 50 << 30, Used: 50 << 30},
		}},
		Proxies: proxies,
	}
	nodeJSON, err := json.Marshal(node)
	if err != nil {
		panic(fmt.Sprintf("stub: encode node stats: %v", err))
	}
	return &State{
		PublicIPs:    []string{"127.0.0.1"},
		Initialized:  true,
		PrimaryDBUp:  true,
		Properties:   map[string]string{"verbose": "False", "max_memory": "400"},
		Uploads:      make(map[string]string),
		Archives:     make(map[string]string),
		Instances:    []protocol.InstanceInfo{{AppID: "guestbook", Host: "127.0.0.1", Port: 20000, Language: "python27"}},
		RequestInfo:  map[string]protocol.RequestInfo{"guestbook_default_v1": {Timestamp: 1700000000, AvgRequestRate: 1.5, NumOfRequests: 42}},
		NodeStats:    nodeJSON,
		ClusterStats: json.RawMessage("[" + string(nodeJSON) + "]"),
	}
}

// Install registers handlers for the whole catalog on srv.
func (st *State) Install(srv *Server) {
	srv.Handle(protocol.MethodSetParameters, st.setParameters)
	srv.Handle(protocol.MethodUploadApp, st.uploadApp)
	srv.Handle(protocol.MethodGetAllPublicIPs, func(protocol.ServerRequest) (any, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		return jsonString(st.PublicIPs)
	})
	srv.Handle(protocol.MethodIsDoneInitializing, func(protocol.ServerRequest) (any, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.Initialized, nil
	})
	srv.Handle(protocol.MethodGetProperty, st.getProperty)
	srv.Handle(protocol.MethodSetProperty, st.setProperty)
	srv.Handle(protocol.MethodSetNodeReadOnly, st.setNodeReadOnly)
	srv.Handle(protocol.MethodPrimaryDBIsUp, func(protocol.ServerRequest) (any, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		return strconv.FormatBool(st.PrimaryDBUp), nil
	})
	srv.Handle(protocol.MethodGetAppUploadStatus, st.uploadStatus)
	srv.Handle(protocol.MethodGetClusterStats, func(protocol.ServerRequest) (any, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		return protocol.Result(st.ClusterStats), nil
	})
	srv.Handle(protocol.MethodGetNodeStats, func(protocol.ServerRequest) (any, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		return protocol.Result(st.NodeStats), nil
	})
	srv.Handle(protocol.MethodGetInstanceInfo, func(protocol.ServerRequest) (any, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		return jsonString(st.Instances)
	})
	srv.Handle(protocol.MethodGetRequestInfo, st.requestInfo)
	srv.Handle(protocol.MethodUpdateCron, st.updateCron)
}

func (st *State) setParameters(req protocol.ServerRequest) (any, error) {
	rawLayout, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	rawOptions, err := req.StringArg(1)
	if err != nil {
		return nil, err
	}
	var layout protocol.Layout
	if err := json.Unmarshal([]byte(rawLayout), &layout); err != nil {
		return protocol.ErrorMarker + " bad layout", nil
	}
	if len(layout) == 0 {
		return protocol.ErrorMarker + " bad layout", nil
	}
	var options map[string]string
	if err := json.Unmarshal([]byte(rawOptions), &options); err != nil {
		return protocol.ErrorMarker + " bad options", nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Layout = layout
	st.Options = options
	return "OK", nil
}

func (st *State) uploadApp(req protocol.ServerRequest) (any, error) {
	file, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	suffix, err := req.StringArg(1)
	if err != nil {
		return nil, err
	}
	switch suffix {
	case "zip", "tar.gz", "tgz":
	default:
		return protocol.ErrorMarker + " unsupported archive suffix " + suffix, nil
	}
	id := uuid.NewString()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Uploads[id] = "starting"
	st.Archives[id] = file
	return id, nil
}

func (st *State) uploadStatus(req protocol.ServerRequest) (any, error) {
	id, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	status, ok := st.Uploads[id]
	if !ok {
		return "unknown", nil
	}
	return status, nil
}

func (st *State) getProperty(req protocol.ServerRequest) (any, error) {
	pattern, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad property regex: %w", err)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]string)
	for k, v := range st.Properties {
		if re.MatchString(k) {
			out[k] = v
		}
	}
	return jsonString(out)
}

func (st *State) setProperty(req protocol.ServerRequest) (any, error) {
	name, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	value, err := req.StringArg(1)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.Properties[name]; !ok {
		return protocol.ErrorMarker + " tried to set an unknown property " + name, nil
	}
	st.Properties[name] = value
	return "OK", nil
}

func (st *State) setNodeReadOnly(req protocol.ServerRequest) (any, error) {
	raw, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	readOnly, err := strconv.ParseBool(raw)
	if err != nil {
		return protocol.InvalidRequestResponse, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ReadOnly = readOnly
	return "OK", nil
}

func (st *State) requestInfo(req protocol.ServerRequest) (any, error) {
	key, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	info, ok := st.RequestInfo[key]
	if !ok {
		return jsonString(protocol.RequestInfo{})
	}
	return jsonString(info)
}

func (st *State) updateCron(req protocol.ServerRequest) (any, error) {
	project, err := req.StringArg(0)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.CronUpdates = append(st.CronUpdates, project)
	return "OK", nil
}

// View runs fn with the state locked.
func (st *State) View(fn func(st *State)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st)
}

// Snapshot returns the properties as sorted key=value pairs.
func (st *State) Snapshot() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	keys := make([]string, 0, len(st.Properties))
	for k := range st.Properties {
		keys = append(keys, k+"="+st.Properties[k])
	}
	sort.Strings(keys)
	return keys
}

// jsonString encodes v as JSON text, the way the controller returns
// structured payloads inside string results.
func jsonString(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
