package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultHost is the host name used when none is given
const DefaultHost = "default"

// Host is a named container-runtime endpoint.
type Host struct {
	Name   string
	Client Client
}

// Dialer opens a client for an endpoint address ("" means the environment).
type Dialer func(ctx context.Context, addr string) (Client, error)

// Hosts resolves host names to connected clients. Connections are opened on
// first use and reused afterwards.
type Hosts struct {
	addrs  map[string]string
	dial   Dialer
	mu     sync.Mutex
	active map[string]*Host
}

// NewHosts creates a host table. The default host is always present and
// connects through the Docker environment unless addrs overrides it.
func NewHosts(addrs map[string]string, dial Dialer) *Hosts {
	table := map[string]string{DefaultHost: ""}
	for name, addr := range addrs {
		table[name] = addr
	}
	if dial == nil {
		dial = NewClient
	}
	return &Hosts{
		addrs:  table,
		dial:   dial,
		active: make(map[string]*Host),
	}
}

// ParseHosts parses "name=addr,name=addr" into a host table.
func ParseHosts(s string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, entry := range strings.Split(s, ",") {
		name, addr, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || name == "" || addr == "" {
			return nil, fmt.Errorf("invalid host entry %q: want name=address", entry)
		}
		out[name] = addr
	}
	return out, nil
}

// Get returns the connected host called name.
func (h *Hosts) Get(ctx context.Context, name string) (*Host, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if host, ok := h.active[name]; ok {
		return host, nil
	}

	addr, ok := h.addrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, name)
	}

	client, err := h.dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("connect to host %s: %w", name, err)
	}

	host := &Host{Name: name, Client: client}
	h.active[name] = host
	return host, nil
}

// Names lists configured host names.
func (h *Hosts) Names() []string {
	names := make([]string, 0, len(h.addrs))
	for name := range h.addrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every opened client.
func (h *Hosts) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for name, host := range h.active {
		if err := host.Client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close host %s: %w", name, err))
		}
	}
	h.active = make(map[string]*Host)
	return errors.Join(errs...)
}
