package node

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/adamgarcia4/goLearning/meff/logger"
)

// Manager runs several nodes in one process on loopback, each joining through
// the first one. It backs `meff cluster` and the integration tests.
type Manager struct {
	nodes       []*Node        // maintain order with slice
	nodeMap     map[string]int // map node address to index for quick lookup
	mu          sync.RWMutex
	portCounter int // for auto-assigning ports
	nextID      int // monotonically increasing counter for unique node names

	// Configure, when set, adjusts every config before its node is created.
	Configure func(*Config)
	// Options are passed to every node.
	Options []Option
}

// NewManager creates a new node manager handing out ports from basePort upwards.
func NewManager(basePort int) *Manager {
	return &Manager{
		nodes:       make([]*Node, 0),
		nodeMap:     make(map[string]int),
		portCounter: basePort,
		nextID:      1, // start node names at 1
	}
}

// CreateNode creates and starts a new node. Every node after the first joins
// through the first node still running.
func (m *Manager) CreateNode() (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	port, err := m.findAvailablePort()
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("node-%d", m.nextID)
	m.nextID++ // increment counter for next node

	config := DefaultConfig(name)
	config.Address = DefaultAddress
	config.Port = strconv.Itoa(port)
	if len(m.nodes) > 0 {
		config.Join = m.nodes[0].Addr()
	}
	if m.Configure != nil {
		m.Configure(config)
	}

	node, err := New(config, m.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}

	if err := node.Start(); err != nil {
		if stopErr := node.Stop(); stopErr != nil {
			logger.Errorf("Error releasing node %s: %v", name, stopErr)
		}
		return nil, fmt.Errorf("failed to start node: %w", err)
	}

	m.nodes = append(m.nodes, node)
	m.nodeMap[node.Addr()] = len(m.nodes) - 1
	return node, nil
}

func (m *Manager) remove(index int) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.nodes) {
		return nil, fmt.Errorf("invalid node index: %d", index)
	}

	node := m.nodes[index]
	m.nodes = append(m.nodes[:index], m.nodes[index+1:]...)
	delete(m.nodeMap, node.Addr())

	// Rebuild map indices
	for i, n := range m.nodes {
		m.nodeMap[n.Addr()] = i
	}
	return node, nil
}

// DeleteNode stops a node without telling anyone, as if it crashed. The
// others find out through their failure monitors.
func (m *Manager) DeleteNode(index int) error {
	node, err := m.remove(index)
	if err != nil {
		return err
	}

	// Stop node asynchronously to avoid blocking
	go func() {
		if err := node.Stop(); err != nil {
			logger.Errorf("Error stopping node %s: %v", node.Name(), err)
		}
	}()
	return nil
}

// LeaveNode makes a node leave the network gracefully.
func (m *Manager) LeaveNode(ctx context.Context, index int) error {
	node, err := m.remove(index)
	if err != nil {
		return err
	}
	return node.Leave(ctx)
}

// GetNodes returns a list of all nodes (maintains order)
func (m *Manager) GetNodes() []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]*Node, len(m.nodes))
	copy(nodes, m.nodes)
	return nodes
}

// Lookup finds a running node by address.
func (m *Manager) Lookup(addr string) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.nodeMap[addr]
	if !ok {
		return nil, false
	}
	return m.nodes[i], true
}

// findAvailablePort returns the next port from the counter that can be bound.
func (m *Manager) findAvailablePort() (int, error) {
	for tries := 0; tries < 100; tries++ {
		port := m.portCounter
		m.portCounter++

		ln, err := net.Listen("tcp", net.JoinHostPort(DefaultAddress, strconv.Itoa(port)))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port found below %d", m.portCounter)
}

// StopAll stops all nodes
func (m *Manager) StopAll() error {
	m.mu.Lock()
	nodes := make([]*Node, len(m.nodes))
	copy(nodes, m.nodes)
	m.nodes = m.nodes[:0]
	m.nodeMap = make(map[string]int)
	m.mu.Unlock()

	var errs []error
	for _, node := range nodes {
		if err := node.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors stopping nodes: %v", errs)
	}

	return nil
}
