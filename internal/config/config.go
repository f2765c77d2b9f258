package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/appctl/internal/protocol"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidDeployment = errors.New("config: invalid deployment")

// DeploymentFile is the on-disk form of a set_parameters payload.
type DeploymentFile struct {
	Nodes   []protocol.NodeLayout `toml:"node"`
	Options map[string]any        `toml:"options"`
}

// Deployment is a validated layout plus options ready to send.
type Deployment struct {
	Layout  protocol.Layout
	Options map[string]string
}

func LoadDeployment(path string) (Deployment, error) {
	var file DeploymentFile
	if err := loadToml(path, &file); err != nil {
		return Deployment{}, err
	}
	return file.Deployment()
}

// Deployment validates the file and flattens its options to strings.
func (f DeploymentFile) Deployment() (Deployment, error) {
	if err := ValidateLayout(f.Nodes); err != nil {
		return Deployment{}, err
	}
	options, err := stringifyOptions(f.Options)
	if err != nil {
		return Deployment{}, err
	}
	return Deployment{Layout: protocol.Layout(f.Nodes), Options: options}, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateLayout(nodes []protocol.NodeLayout) error {
	if len(nodes) == 0 {
		return fmt.Errorf("%w: at least one [[node]] is required", ErrInvalidDeployment)
	}
	for i, node := range nodes {
		if err := ValidateNode(node); err != nil {
			return fmt.Errorf("%w: node[%d]: %v", ErrInvalidDeployment, i, err)
		}
	}
	return nil
}

func ValidateNode(node protocol.NodeLayout) error {
	if len(node.Roles) == 0 {
		return fmt.Errorf("roles are required")
	}
	for _, role := range node.Roles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("empty role")
		}
	}
	if node.Nodes < 0 {
		return fmt.Errorf("nodes must not be negative")
	}
	return nil
}
