package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "deployment":
		return deploymentTemplate, nil
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const deploymentTemplate = `[[node]]
roles = ["master", "shadow", "load_balancer", "database", "zookeeper"]
nodes = 1
instance_type = "m3.medium"

[[node]]
roles = ["compute"]
nodes = 2

[options]
keyname = "appscale"
replication = 1
verbose = false
`

const clientTemplate = `host = "127.0.0.1"
# secret may also come from APPCTL_SECRET
secret = ""
max_attempts = 0

[timeouts]
short = "10s"
long = "30s"
unbounded = "100000s"

[retry]
pause = "1s"

[tls]
verify_chain = false
ca_file = ""
server_name = ""

[gateway]
addr = "127.0.0.1:9400"
cors_origins = ["http://localhost:3000"]

[stub]
addr = "127.0.0.1:17443"
secret = "appctl-dev"
`
