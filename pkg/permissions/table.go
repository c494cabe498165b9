// Package permissions assembles the operation → requirement table of every
// groundup service.
package permissions

import (
	"fmt"
	"os"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/inventory"
	"github.com/rsbst23/groundup/pkg/tenants"
)

// Declare registers the compiled-in requirements of all services on reg
func Declare(reg *authz.Registry) error {
	if err := tenants.Register(reg); err != nil {
		return fmt.Errorf("tenants: %w", err)
	}
	if err := inventory.Register(reg); err != nil {
		return fmt.Errorf("inventory: %w", err)
	}
	return nil
}

// Build declares every operation, applies the YAML file at overridePath when
// it is set and returns the frozen registry
func Build(overridePath string) (*authz.Registry, error) {
	reg := authz.NewRegistry()
	if err := Declare(reg); err != nil {
		return nil, err
	}

	if overridePath != "" {
		override, err := load(overridePath)
		if err != nil {
			return nil, err
		}
		if err := reg.Override(override); err != nil {
			return nil, err
		}
	}

	reg.Freeze()
	return reg, nil
}

func load(path string) (*authz.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open permission table: %w", err)
	}
	defer f.Close()

	reg, err := authz.LoadRegistryYAML(f)
	if err != nil {
		return nil, fmt.Errorf("load permission table %s: %w", path, err)
	}
	return reg, nil
}
