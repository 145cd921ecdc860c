package portprobe

import (
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultHost    = "localhost"
	DefaultTimeout = 500 * time.Millisecond
)

// Probe answers whether something accepts TCP connections on a local port.
// It is a liveness heuristic, not a bind-ownership check.
type Probe struct {
	Host    string
	Timeout time.Duration
}

// New returns a probe with defaults applied for empty values.
func New(host string, timeout time.Duration) *Probe {
	if host == "" {
		host = DefaultHost
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Probe{Host: host, Timeout: timeout}
}

// IsInUse reports true iff a TCP connect to host:port succeeds within the timeout.
func (p *Probe) IsInUse(port int) bool {
	if port <= 0 || port > 65535 {
		return false
	}
	host, timeout := p.Host, p.Timeout
	if host == "" {
		host = DefaultHost
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// InUse probes ports concurrently. Duplicates are probed once.
func (p *Probe) InUse(ports []int) map[int]bool {
	out := make(map[int]bool, len(ports))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	seen := make(map[int]struct{}, len(ports))
	for _, port := range ports {
		if _, ok := seen[port]; ok {
			continue
		}
		seen[port] = struct{}{}
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			used := p.IsInUse(port)
			mu.Lock()
			out[port] = used
			mu.Unlock()
		}(port)
	}
	wg.Wait()
	return out
}
