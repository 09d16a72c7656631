package services

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultStartupTimeout bounds how long a freshly launched service may take to answer its probe
const DefaultStartupTimeout = 60 * time.Second

// Role groups services for subset operations
type Role string

const (
	RoleAPI  Role = "api"
	RoleTool Role = "tool"
)

// ProbeKind selects the liveness protocol spoken to a service
type ProbeKind string

const (
	ProbeKindHTTP ProbeKind = "http"
	ProbeKindGRPC ProbeKind = "grpc"
)

// Descriptor is the immutable definition of one managed service.
// Port identifies the service for process lookup and termination.
type Descriptor struct {
	Name           string
	Role           Role
	Host           string
	Port           int
	HealthEndpoint string
	Probe          ProbeKind
	LaunchCommand  string
	StartupTimeout time.Duration
}

// CanLaunch reports whether the service has a launch command configured
func (d Descriptor) CanLaunch() bool {
	return strings.TrimSpace(d.LaunchCommand) != ""
}

// Address is host:port
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// URL is the health-check URL http://host:port/endpoint
func (d Descriptor) URL() string {
	endpoint := d.HealthEndpoint
	if endpoint == "" {
		endpoint = "/"
	} else if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return fmt.Sprintf("http://%s%s", d.Address(), endpoint)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Address())
}

// Timeout returns StartupTimeout, or DefaultStartupTimeout when unset
func (d Descriptor) Timeout() time.Duration {
	if d.StartupTimeout <= 0 {
		return DefaultStartupTimeout
	}
	return d.StartupTimeout
}

// Names lists the names of descriptors in order
func Names(descriptors []Descriptor) []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	return names
}

// EffectiveRole treats an unset role as a tool
func (d Descriptor) EffectiveRole() Role {
	if d.Role == "" {
		return RoleTool
	}
	return d.Role
}

// EffectiveProbe treats an unset probe kind as HTTP
func (d Descriptor) EffectiveProbe() ProbeKind {
	if d.Probe == "" {
		return ProbeKindHTTP
	}
	return d.Probe
}

// FilterByRole keeps descriptors with the given role, preserving order
func FilterByRole(descriptors []Descriptor, role Role) []Descriptor {
	var filtered []Descriptor
	for _, d := range descriptors {
		if d.EffectiveRole() == role {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
