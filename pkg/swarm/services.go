package swarm

import (
	"context"
	"encoding/json"
	"strings"

	dockerswarm "github.com/docker/docker/api/types/swarm"
	"github.com/pkg/errors"

	srerr "github.com/fluxcd/servicereload/pkg/errors"
	"github.com/fluxcd/servicereload/pkg/run"
)

const (
	// WatchLabel opts a service in to automatic updates when set to
	// exactly "true".
	WatchLabel = "com.pymet.servicereload.watch"
	// ImageLabel is put on services by `docker stack deploy` and names
	// the image as written in the stack file.
	ImageLabel = "com.docker.stack.image"
)

// ServiceRef names a service as listed by the orchestrator.
type ServiceRef struct {
	Name string
}

// ServiceInfo is what we need to know about a service to decide
// whether, and how, to update it.
type ServiceInfo struct {
	Name    string
	Labels  map[string]string
	Enabled bool
	Image   string
}

func NewServiceInfo(name string, labels map[string]string) ServiceInfo {
	return ServiceInfo{
		Name:    name,
		Labels:  labels,
		Enabled: labels[WatchLabel] == "true",
		Image:   labels[ImageLabel],
	}
}

// ListServices returns the names of all services. Anything written to
// stderr is taken as failure, even if a list was also produced.
func (c *Swarm) ListServices(ctx context.Context) ([]ServiceRef, error) {
	out, err := c.exec(ctx, "service ls", run.Cmd{Args: []string{"service", "ls", "--format", "{{.Name}}"}})
	if err != nil {
		return nil, srerr.DiscoveryError(errors.Wrap(err, "cannot read services"))
	}
	if out.Stderr != "" {
		return nil, srerr.DiscoveryError(errors.Errorf("cannot read services: %s", strings.TrimSpace(out.Stderr)))
	}
	var refs []ServiceRef
	for _, line := range strings.Split(out.Stdout, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			refs = append(refs, ServiceRef{Name: name})
		}
	}
	return refs, nil
}

// Inspect reads the spec of the named service. Exactly one record is
// expected back.
func (c *Swarm) Inspect(ctx context.Context, name string) (ServiceInfo, error) {
	out, err := c.exec(ctx, "service inspect", run.Cmd{Args: []string{"service", "inspect", name}})
	if err != nil {
		return ServiceInfo{}, srerr.InspectError(name, errors.Wrap(err, "cannot read service information"))
	}
	if out.Stderr != "" {
		return ServiceInfo{}, srerr.InspectError(name, errors.Errorf("cannot read service information: %s", strings.TrimSpace(out.Stderr)))
	}
	info, err := parseInspect(name, []byte(out.Stdout))
	if err != nil {
		return ServiceInfo{}, srerr.InspectError(name, err)
	}
	return info, nil
}

func parseInspect(name string, data []byte) (ServiceInfo, error) {
	var records []*dockerswarm.Service
	if err := json.Unmarshal(data, &records); err != nil {
		return ServiceInfo{}, errors.Wrap(err, "cannot parse service information")
	}
	switch {
	case len(records) == 0:
		return ServiceInfo{}, srerr.ErrNoRecord
	case len(records) > 1:
		return ServiceInfo{}, errors.Errorf("expected one service record, got %d", len(records))
	case records[0] == nil || records[0].Spec.Name == "":
		return ServiceInfo{}, errors.New("malformed service record")
	}
	return NewServiceInfo(name, records[0].Spec.Labels), nil
}
