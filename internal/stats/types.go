// Package stats types the node and cluster statistics payloads returned by
// the controller, including the per-proxy load balancer records.
package stats

// NodeStats is one node's snapshot.
type NodeStats struct {
	PublicIP  string       `json:"public_ip"`
	PrivateIP string       `json:"private_ip"`
	Roles     []string     `json:"roles"`
	CPU       CPU          `json:"cpu"`
	Memory    Memory       `json:"memory"`
	Loadavg   Loadavg      `json:"loadavg"`
	Disk      Disk         `json:"disk"`
	Proxies   []ProxyStats `json:"proxies,omitempty"`
}

type CPU struct {
	Idle   float64 `json:"idle"`
	System float64 `json:"system"`
	User   float64 `json:"user"`
	Count  int     `json:"count"`
}

type Memory struct {
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
	Used      uint64 `json:"used"`
}

type Loadavg struct {
	Last1Min  float64 `json:"last_1min"`
	Last5Min  float64 `json:"last_5min"`
	Last15Min float64 `json:"last_15min"`
}

type Disk struct {
	Partitions []Partition `json:"partitions"`
}

type Partition struct {
	Mountpoint string `json:"mountpoint"`
	Total      uint64 `json:"total"`
	Free       uint64 `json:"free"`
	Used       uint64 `json:"used"`
}

// ProxyStats groups every load balancer record of one proxy. A valid proxy
// has exactly one frontend and one backend.
type ProxyStats struct {
	Name               string          `json:"name"`
	UnifiedServiceName string          `json:"unified_service_name,omitempty"`
	UTCTimestamp       int64           `json:"utc_timestamp,omitempty"`
	Frontend           *FrontendStats  `json:"frontend"`
	Backend            *BackendStats   `json:"backend"`
	Servers            []ServerStats   `json:"servers"`
	Listeners          []ListenerStats `json:"listeners"`
	// MissingFields names counters absent from the table header. Their values
	// read as 0 but were never reported, unlike an empty cell.
	MissingFields []string `json:"missing_fields,omitempty"`
}

// FrontendStats is the FRONTEND line of a proxy.
type FrontendStats struct {
	Pxname    string `json:"pxname,omitempty"`
	Svname    string `json:"svname,omitempty"`
	Scur      int64  `json:"scur"`
	Smax      int64  `json:"smax"`
	Slim      int64  `json:"slim,omitempty"`
	Stot      int64  `json:"stot"`
	Bin       int64  `json:"bin,omitempty"`
	Bout      int64  `json:"bout,omitempty"`
	Ereq      int64  `json:"ereq,omitempty"`
	Status    string `json:"status"`
	Rate      int64  `json:"rate,omitempty"`
	ReqRate   int64  `json:"req_rate,omitempty"`
	ReqTot    int64  `json:"req_tot"`
	Hrsp1xx   int64  `json:"hrsp_1xx,omitempty"`
	Hrsp2xx   int64  `json:"hrsp_2xx,omitempty"`
	Hrsp3xx   int64  `json:"hrsp_3xx,omitempty"`
	Hrsp4xx   int64  `json:"hrsp_4xx,omitempty"`
	Hrsp5xx   int64  `json:"hrsp_5xx"`
	HrspOther int64  `json:"hrsp_other,omitempty"`
}

// BackendStats is the BACKEND line of a proxy.
type BackendStats struct {
	Pxname   string `json:"pxname,omitempty"`
	Svname   string `json:"svname,omitempty"`
	Qcur     int64  `json:"qcur"`
	Qmax     int64  `json:"qmax,omitempty"`
	Scur     int64  `json:"scur"`
	Smax     int64  `json:"smax,omitempty"`
	Stot     int64  `json:"stot"`
	Econ     int64  `json:"econ,omitempty"`
	Eresp    int64  `json:"eresp,omitempty"`
	Status   string `json:"status"`
	Act      int64  `json:"act,omitempty"`
	Bck      int64  `json:"bck,omitempty"`
	Downtime int64  `json:"downtime,omitempty"`
	Hrsp4xx  int64  `json:"hrsp_4xx,omitempty"`
	Hrsp5xx  int64  `json:"hrsp_5xx,omitempty"`
	Qtime    int64  `json:"qtime,omitempty"`
	Ctime    int64  `json:"ctime,omitempty"`
	Rtime    int64  `json:"rtime,omitempty"`
	Ttime    int64  `json:"ttime,omitempty"`
}

// ServerStats is one backend server line.
type ServerStats struct {
	UnifiedServerName string `json:"unified_server_name,omitempty"`
	Pxname            string `json:"pxname,omitempty"`
	Svname            string `json:"svname"`
	Qcur              int64  `json:"qcur"`
	Qmax              int64  `json:"qmax,omitempty"`
	Scur              int64  `json:"scur"`
	Smax              int64  `json:"smax,omitempty"`
	Stot              int64  `json:"stot,omitempty"`
	Status            string `json:"status"`
	Weight            int64  `json:"weight,omitempty"`
	Chkfail           int64  `json:"chkfail,omitempty"`
	Downtime          int64  `json:"downtime,omitempty"`
	CheckStatus       string `json:"check_status,omitempty"`
	Rtime             int64  `json:"rtime,omitempty"`
}

// ListenerStats is one socket/listener line.
type ListenerStats struct {
	Pxname string `json:"pxname,omitempty"`
	Svname string `json:"svname"`
	Scur   int64  `json:"scur"`
	Smax   int64  `json:"smax,omitempty"`
	Stot   int64  `json:"stot,omitempty"`
	Status string `json:"status"`
}

// ServersUp counts servers reporting UP.
func (p ProxyStats) ServersUp() int {
	n := 0
	for _, s := range p.Servers {
		if s.Status == "UP" {
			n++
		}
	}
	return n
}
