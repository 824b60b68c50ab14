package reconcile

// ServiceSpec is one deployable entry of a unit manifest: a single container
// the unit should be running.
type ServiceSpec struct {
	Name          string   `json:"name"`
	Image         string   `json:"image"`
	Privileged    bool     `json:"privileged"`
	RestartPolicy string   `json:"restart_policy"`
	Environment   []string `json:"environment,omitempty"`
	Ports         []string `json:"ports,omitempty"`
	Volumes       []string `json:"volumes,omitempty"`
}

// Manifest is the abstract set of feature deployments a unit should run,
// ordered as the catalog yields them.
type Manifest struct {
	Services []ServiceSpec `json:"services"`
}

// Renderer turns an abstract manifest into a concrete wire format. The
// engine never depends on the format itself.
type Renderer interface {
	Render(m Manifest) ([]byte, error)
	ContentType() string
	Filename() string
}
