package services

import (
	"fmt"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
)

// ValidateDescriptor checks a single descriptor
func ValidateDescriptor(d Descriptor) error {
	if d.Name == "" {
		return errors.NewValidationError("service name is required", nil)
	}
	if d.Host == "" {
		return errors.NewValidationError("service host is required", nil).WithContext("service", d.Name)
	}
	if d.Port <= 0 || d.Port > 65535 {
		return errors.NewValidationError(fmt.Sprintf("invalid port number: %d", d.Port), nil).
			WithContext("service", d.Name).
			WithContext("valid_range", "1-65535")
	}
	switch d.Role {
	case "", RoleAPI, RoleTool:
	default:
		return errors.NewValidationError("unsupported service role: "+string(d.Role), nil).
			WithContext("service", d.Name).
			WithContext("supported_roles", "api, tool")
	}
	switch d.Probe {
	case "", ProbeKindHTTP, ProbeKindGRPC:
	default:
		return errors.NewValidationError("unsupported probe kind: "+string(d.Probe), nil).
			WithContext("service", d.Name)
	}
	if d.StartupTimeout < 0 {
		return errors.NewValidationError("startup timeout cannot be negative", nil).WithContext("service", d.Name)
	}
	return nil
}

// ValidateDescriptors checks every descriptor and the uniqueness of names and ports
func ValidateDescriptors(descriptors []Descriptor) error {
	names := make(map[string]struct{}, len(descriptors))
	ports := make(map[int]string, len(descriptors))

	for i, d := range descriptors {
		if err := ValidateDescriptor(d); err != nil {
			return errors.NewValidationError(fmt.Sprintf("invalid service at index %d", i), err)
		}
		if _, exists := names[d.Name]; exists {
			return errors.NewValidationError("duplicate service name: "+d.Name, nil)
		}
		names[d.Name] = struct{}{}

		if other, exists := ports[d.Port]; exists {
			return errors.NewValidationError(fmt.Sprintf("port %d used by both %s and %s", d.Port, other, d.Name), nil)
		}
		ports[d.Port] = d.Name
	}
	return nil
}
