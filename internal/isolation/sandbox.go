package isolation

import (
	"fmt"
	"strings"
	"sync"
)

// ViolationError reports a resource ceiling or namespace guard violation.
type ViolationError struct {
	Plugin string
	Limit  string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("isolation violation for plugin %s (%s): %s", e.Plugin, e.Limit, e.Reason)
}

// Sandbox tracks one plugin's live resource usage against its limits and
// guards module namespace resolution during isolated calls. This is
// best-effort containment, not a security boundary: genuine isolation needs
// process-level separation.
type Sandbox struct {
	pluginName string
	limits     ResourceLimits

	mu          sync.Mutex
	threads     int
	fileHandles int
	grants      map[string]bool // namespaces resolved during the current call
	guarded     bool
}

// NewSandbox creates a sandbox for a plugin with the given limits.
func NewSandbox(pluginName string, limits ResourceLimits) *Sandbox {
	return &Sandbox{
		pluginName: pluginName,
		limits:     limits,
		grants:     make(map[string]bool),
	}
}

// PluginName returns the owning plugin's name.
func (s *Sandbox) PluginName() string { return s.pluginName }

// Limits returns the configured ceilings.
func (s *Sandbox) Limits() ResourceLimits { return s.limits }

// AcquireThread tracks a new concurrent thread for the plugin. Exceeding the
// ceiling fails immediately.
func (s *Sandbox) AcquireThread() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limits.MaxThreads > 0 && s.threads >= s.limits.MaxThreads {
		return &ViolationError{
			Plugin: s.pluginName,
			Limit:  "max_threads",
			Reason: fmt.Sprintf("%d threads already tracked", s.threads),
		}
	}
	s.threads++
	return nil
}

// ReleaseThread releases a previously acquired thread slot.
func (s *Sandbox) ReleaseThread() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.threads > 0 {
		s.threads--
	}
}

// AcquireFileHandle tracks a new open handle. Exceeding the ceiling fails
// immediately.
func (s *Sandbox) AcquireFileHandle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limits.MaxFileHandles > 0 && s.fileHandles >= s.limits.MaxFileHandles {
		return &ViolationError{
			Plugin: s.pluginName,
			Limit:  "max_file_handles",
			Reason: fmt.Sprintf("%d handles already open", s.fileHandles),
		}
	}
	s.fileHandles++
	return nil
}

// ReleaseFileHandle releases a previously acquired handle slot.
func (s *Sandbox) ReleaseFileHandle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileHandles > 0 {
		s.fileHandles--
	}
}

// Usage returns the live thread and file-handle counters.
func (s *Sandbox) Usage() (threads, fileHandles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads, s.fileHandles
}

// Resolve checks a module namespace against the allow/block lists and, when
// the guard is active, records the grant so it can be revoked when the call
// exits. Block wins over allow; with a non-empty allow list, anything not
// matched by it is rejected.
func (s *Sandbox) Resolve(namespace string) error {
	for _, blocked := range s.limits.BlockedNamespaces {
		if matchNamespace(namespace, blocked) {
			return &ViolationError{
				Plugin: s.pluginName,
				Limit:  "blocked_namespace",
				Reason: namespace,
			}
		}
	}

	if len(s.limits.AllowedNamespaces) > 0 {
		allowed := false
		for _, allow := range s.limits.AllowedNamespaces {
			if matchNamespace(namespace, allow) {
				allowed = true
				break
			}
		}
		if !allowed {
			return &ViolationError{
				Plugin: s.pluginName,
				Limit:  "allowed_namespace",
				Reason: namespace,
			}
		}
	}

	s.mu.Lock()
	if s.guarded {
		s.grants[namespace] = true
	}
	s.mu.Unlock()
	return nil
}

// enterGuard snapshots the grant state before an isolated call.
func (s *Sandbox) enterGuard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guarded = true
	s.grants = make(map[string]bool)
}

// exitGuard revokes grants introduced during the call and deactivates the
// guard.
func (s *Sandbox) exitGuard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guarded = false
	s.grants = make(map[string]bool)
}

// Grants returns the namespaces resolved during the current guarded call.
func (s *Sandbox) Grants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.grants))
	for ns := range s.grants {
		out = append(out, ns)
	}
	return out
}

// matchNamespace matches a namespace against a pattern: exact match or
// prefix match on a path segment boundary (pattern "net" matches "net" and
// "net/http" but not "network").
func matchNamespace(namespace, pattern string) bool {
	if namespace == pattern {
		return true
	}
	return strings.HasPrefix(namespace, pattern+"/")
}
