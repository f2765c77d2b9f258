package stats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Namer maps load balancer names onto deployment service and server names.
type Namer interface {
	ServiceName(proxy string) string
	ServerName(proxy, server string) string
}

// fields read from every "show stat" table.
var haproxyFields = []string{
	"pxname", "svname", "qcur", "qmax", "scur", "smax", "slim", "stot",
	"bin", "bout", "ereq", "econ", "eresp", "status", "weight", "act", "bck",
	"chkfail", "downtime", "rate", "check_status", "hrsp_1xx", "hrsp_2xx",
	"hrsp_3xx", "hrsp_4xx", "hrsp_5xx", "hrsp_other", "req_rate", "req_tot",
	"qtime", "ctime", "rtime", "ttime",
}

type statRow struct {
	line   int
	values map[string]string
	err    error
}

func (r *statRow) text(name string) string {
	return r.values[name]
}

func (r *statRow) num(name string) int64 {
	raw := strings.TrimSpace(r.values[name])
	if raw == "" || r.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("%w: line %d field %s=%q", ErrMalformedStats, r.line, name, raw)
	}
	return v
}

// ParseHAProxyCSV parses the output of the HAProxy "show stat" command into
// one ProxyStats per proxy. A nil namer keeps the HAProxy names.
func ParseHAProxyCSV(r io.Reader, namer Namer, at time.Time) ([]ProxyStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty stats table", ErrMalformedStats)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedStats, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "# ")
	}
	known := make(map[string]bool, len(header))
	for _, name := range header {
		known[name] = true
	}
	var missing []string
	for _, name := range haproxyFields {
		if !known[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		log.Warn().Strs("fields", missing).Msg("haproxy stats fields missing, expected v1.5+")
	}

	type group struct {
		frontends []FrontendStats
		backends  []BackendStats
		servers   []ServerStats
		listeners []ListenerStats
	}
	groups := make(map[string]*group)
	var order []string

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStats, err)
		}
		row := &statRow{line: line, values: make(map[string]string, len(header))}
		for i, name := range header {
			if i < len(record) {
				row.values[name] = record[i]
			}
		}
		proxy := row.text("pxname")
		if proxy == "" {
			continue
		}
		g, ok := groups[proxy]
		if !ok {
			g = &group{}
			groups[proxy] = g
			order = append(order, proxy)
		}

		switch svname := row.text("svname"); {
		case svname == "FRONTEND":
			g.frontends = append(g.frontends, frontendFrom(row))
		case svname == "BACKEND":
			g.backends = append(g.backends, backendFrom(row))
		case strings.TrimSpace(row.text("qcur")) != "":
			// listeners have no queue column
			s := serverFrom(row)
			if namer != nil {
				s.UnifiedServerName = namer.ServerName(proxy, svname)
			}
			g.servers = append(g.servers, s)
		default:
			g.listeners = append(g.listeners, listenerFrom(row))
		}
		if row.err != nil {
			return nil, row.err
		}
	}

	out := make([]ProxyStats, 0, len(order))
	for _, name := range order {
		g := groups[name]
		if len(g.frontends) != 1 || len(g.backends) != 1 {
			return nil, fmt.Errorf("%w: proxy %q has %d frontends and %d backends",
				ErrInvalidProxyStats, name, len(g.frontends), len(g.backends))
		}
		p := ProxyStats{
			Name:         name,
			UTCTimestamp: at.UTC().Unix(),
			Frontend:     &g.frontends[0],
			Backend:      &g.backends[0],
			Servers:      g.servers,
			Listeners:    g.listeners,
		}
		if len(missing) > 0 {
			p.MissingFields = append([]string(nil), missing...)
		}
		if namer != nil {
			p.UnifiedServiceName = namer.ServiceName(name)
		}
		if p.Servers == nil {
			p.Servers = []ServerStats{}
		}
		if p.Listeners == nil {
			p.Listeners = []ListenerStats{}
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func frontendFrom(r *statRow) FrontendStats {
	return FrontendStats{
		Pxname:    r.text("pxname"),
		Svname:    r.text("svname"),
		Scur:      r.num("scur"),
		Smax:      r.num("smax"),
		Slim:      r.num("slim"),
		Stot:      r.num("stot"),
		Bin:       r.num("bin"),
		Bout:      r.num("bout"),
		Ereq:      r.num("ereq"),
		Status:    r.text("status"),
		Rate:      r.num("rate"),
		ReqRate:   r.num("req_rate"),
		ReqTot:    r.num("req_tot"),
		Hrsp1xx:   r.num("hrsp_1xx"),
		Hrsp2xx:   r.num("hrsp_2xx"),
		Hrsp3xx:   r.num("hrsp_3xx"),
		Hrsp4xx:   r.num("hrsp_4xx"),
		Hrsp5xx:   r.num("hrsp_5xx"),
		HrspOther: r.num("hrsp_other"),
	}
}

func backendFrom(r *statRow) BackendStats {
	return BackendStats{
		Pxname:   r.text("pxname"),
		Svname:   r.text("svname"),
		Qcur:     r.num("qcur"),
		Qmax:     r.num("qmax"),
		Scur:     r.num("scur"),
		Smax:     r.num("smax"),
		Stot:     r.num("stot"),
		Econ:     r.num("econ"),
		Eresp:    r.num("eresp"),
		Status:   r.text("status"),
		Act:      r.num("act"),
		Bck:      r.num("bck"),
		Downtime: r.num("downtime"),
		Hrsp4xx:  r.num("hrsp_4xx"),
		Hrsp5xx:  r.num("hrsp_5xx"),
		Qtime:    r.num("qtime"),
		Ctime:    r.num("ctime"),
		Rtime:    r.num("rtime"),
		Ttime:    r.num("ttime"),
	}
}

func serverFrom(r *statRow) ServerStats {
	return ServerStats{
		Pxname:      r.text("pxname"),
		Svname:      r.text("svname"),
		Qcur:        r.num("qcur"),
		Qmax:        r.num("qmax"),
		Scur:        r.num("scur"),
		Smax:        r.num("smax"),
		Stot:        r.num("stot"),
		Status:      r.text("status"),
		Weight:      r.num("weight"),
		Chkfail:     r.num("chkfail"),
		Downtime:    r.num("downtime"),
		CheckStatus: r.text("check_status"),
		Rtime:       r.num("rtime"),
	}
}

func listenerFrom(r *statRow) ListenerStats {
	return ListenerStats{
		Pxname: r.text("pxname"),
		Svname: r.text("svname"),
		Scur:   r.num("scur"),
		Smax:   r.num("smax"),
		Stot:   r.num("stot"),
		Status: r.text("status"),
	}
}
