// Package compose renders abstract unit manifests as docker-compose v3
// files, the format vehicle head units consume.
package compose

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vehicleplus/sums/core/reconcile"
)

type service struct {
	ContainerName string   `yaml:"container_name"`
	Image         string   `yaml:"image"`
	Restart       string   `yaml:"restart,omitempty"`
	Privileged    bool     `yaml:"privileged,omitempty"`
	Environment   []string `yaml:"environment,omitempty"`
	Ports         []string `yaml:"ports,omitempty"`
	Volumes       []string `yaml:"volumes,omitempty"`
}

type file struct {
	Version  string             `yaml:"version"`
	Services map[string]service `yaml:"services"`
}

// Renderer implements reconcile.Renderer for docker-compose v3 output.
type Renderer struct{}

// NewRenderer creates a compose Renderer.
func NewRenderer() Renderer { return Renderer{} }

// Render serializes the manifest to a compose file.
func (Renderer) Render(m reconcile.Manifest) ([]byte, error) {
	out := file{Version: "3", Services: make(map[string]service, len(m.Services))}
	for _, s := range m.Services {
		if _, dup := out.Services[s.Name]; dup {
			return nil, fmt.Errorf("duplicate service name %q", s.Name)
		}
		out.Services[s.Name] = service{
			ContainerName: s.Name,
			Image:         s.Image,
			Restart:       s.RestartPolicy,
			Privileged:    s.Privileged,
			Environment:   s.Environment,
			Ports:         s.Ports,
			Volumes:       s.Volumes,
		}
	}
	return yaml.Marshal(out)
}

// ContentType implements reconcile.Renderer.
func (Renderer) ContentType() string { return "text/yaml" }

// Filename implements reconcile.Renderer.
func (Renderer) Filename() string { return "docker-compose.yml" }
