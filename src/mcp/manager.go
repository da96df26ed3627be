package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const initializeTimeout = 10 * time.Second

// Manager owns the set of connected MCP servers.
type Manager struct {
	logger *slog.Logger

	mu      sync.RWMutex
	servers map[string]Server

	initParams *InitializeParams
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger.With("component", "mcp_manager"),
		servers: make(map[string]Server),
		initParams: &InitializeParams{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    ClientCapability{},
			ClientInfo: &ClientInfo{
				Name:    "skald",
				Version: "0.1.0",
			},
		},
	}
}

// AddServer launches and initializes a server. A server that fails to
// initialize is torn down and not registered.
func (m *Manager) AddServer(config ServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if config.Name == "" {
		return fmt.Errorf("server name cannot be empty")
	}
	if _, exists := m.servers[config.Name]; exists {
		return fmt.Errorf("server %q already exists", config.Name)
	}

	server, err := NewServer(config, m.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initializeTimeout)
	defer cancel()
	if _, err := server.Initialize(ctx, m.initParams); err != nil {
		server.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	m.servers[config.Name] = server

	m.logger.Info("mcp server added", "name", config.Name)
	return nil
}

// LoadServers adds each configured server, skipping ones that fail so a
// single bad server does not block startup. The joined error reports the
// failures.
func (m *Manager) LoadServers(configs []ServerConfig) error {
	var errs []error
	for _, config := range configs {
		if err := m.AddServer(config); err != nil {
			m.logger.Warn("skipping mcp server", "name", config.Name, "error", err)
			errs = append(errs, fmt.Errorf("server %q: %w", config.Name, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveServer closes and forgets a server.
func (m *Manager) RemoveServer(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	server, exists := m.servers[name]
	if !exists {
		return fmt.Errorf("server %q not found", name)
	}

	if err := server.Close(); err != nil {
		m.logger.Error("error closing server", "name", name, "error", err)
	}
	delete(m.servers, name)

	m.logger.Info("mcp server removed", "name", name)
	return nil
}

// GetServer returns a server by name, or nil.
func (m *Manager) GetServer(name string) Server {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.servers[name]
}

// ListServers returns the connected server names, sorted.
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools lists every remote tool across all connected servers, wrapped and
// tagged with its owning server. Servers that fail to list are skipped with
// a warning.
func (m *Manager) Tools(ctx context.Context) []*RemoteTool {
	m.mu.RLock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	servers := make(map[string]Server, len(names))
	for _, name := range names {
		servers[name] = m.servers[name]
	}
	m.mu.RUnlock()

	var tools []*RemoteTool
	for _, name := range names {
		defs, err := servers[name].ListTools(ctx)
		if err != nil {
			m.logger.Warn("failed to list tools", "server", name, "error", err)
			continue
		}
		for _, def := range defs {
			tool, err := NewRemoteTool(name, servers[name], def)
			if err != nil {
				m.logger.Warn("skipping tool with bad schema", "server", name, "tool", def.Name, "error", err)
				continue
			}
			tools = append(tools, tool)
		}
	}
	return tools
}

// Close shuts all servers down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, server := range m.servers {
		if err := server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close server %q: %w", name, err))
		}
	}
	m.servers = make(map[string]Server)

	return errors.Join(errs...)
}
