// Package casconfig opens the payload store described by the hosting.cas
// section of the configuration file.
//
//	hosting:
//	  mode: cas
//	  cas:
//	    write_policy: all
//	    backends:
//	      - name: localfs
//	        config: {dir: /var/lib/wipecert/payloads}
//	      - name: grpc
//	        id: archive
//	        config: {target: "cas.internal:7777"}
//
// Backends still have to be linked into the binary with a blank import.
package casconfig

import (
	"errors"
	"fmt"

	"nullbytes.dev/wipecert/storage"
	"nullbytes.dev/wipecert/storage/casregistry"
)

const (
	// WriteFirst writes to the first backend only; reads fall back in order.
	WriteFirst = "first"
	// WriteAll writes to every backend and requires identical CIDs.
	WriteAll = "all"
)

type Config struct {
	WritePolicy string          `yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	// Name selects the casregistry backend ("localfs", "grpc", "ipfs").
	Name string `yaml:"name"`
	// ID distinguishes two instances of the same backend. Defaults to Name.
	ID     string            `yaml:"id,omitempty"`
	Config map[string]string `yaml:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every backend in order and combines them according to
// WritePolicy. The returned close function releases all of them.
func (c Config) Open(usage casregistry.Usage) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	named := make([]storage.NamedCAS, 0, len(c.Backends))
	closers := make([]func() error, 0, len(c.Backends))
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, b := range c.Backends {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("casconfig: backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if c.WritePolicy == WriteAll {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	bs := make([]storage.CAS, 0, len(named))
	for _, n := range named {
		bs = append(bs, n.CAS)
	}
	return storage.FallbackCAS{Backends: bs}, closeAll, nil
}
