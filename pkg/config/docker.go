package config

import (
	"os"
	"sync"
)

// Marker files created by container runtimes.
var containerMarkers = []string{"/.dockerenv", "/run/.containerenv"}

var (
	inContainerOnce   sync.Once
	inContainerResult bool
)

// IsRunningInDocker reports whether the process runs inside a Docker or Podman container.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	inContainerOnce.Do(func() {
		inContainerResult = hasAnyFile(containerMarkers)
	})
	return inContainerResult
}

func hasAnyFile(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// ResolveHostForDocker maps a loopback host to host.docker.internal when running in a
// container, so the PostgreSQL, Redis and sidecar services on the host stay reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() || !isLoopback(host) {
		return host
	}
	return "host.docker.internal"
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
