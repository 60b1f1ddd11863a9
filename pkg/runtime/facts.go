package runtime

import (
	"bufio"
	"context"
	"net"
	"os"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/sealrunner/sealrunner/pkg/errdefs"
)

// hostFacts are the facts a sealed binary collects about the host it
// is running on. Collection happens once per process and is cached for
// the remainder of the run. Run merges them (via asMap) into the scope
// that task conditions are evaluated against; module functions receive
// only their task's args and do not see facts. The shape mirrors
// pkg/engine/facts.go's OSFacts/NetworkFacts but is gathered locally
// (os.Hostname, /proc/sys/kernel/osrelease, net.Interfaces) instead of
// over an SSH transport, since the binary already runs on its target.
type hostFacts struct {
	Hostname        string            `json:"hostname"`
	FQDN            string            `json:"fqdn"`
	OSFamily        string            `json:"os_family"`
	Distro          string            `json:"distro"`
	DistroVersion   string            `json:"distro_version"`
	Arch            string            `json:"arch"`
	Kernel          string            `json:"kernel"`
	Interfaces      []networkInterface `json:"interfaces"`
	DefaultRoute    string            `json:"default_route"`
}

type networkInterface struct {
	Name        string   `json:"name"`
	IPAddresses []string `json:"ip_addresses"`
	MACAddress  string   `json:"mac_address"`
}

var (
	factsOnce   sync.Once
	cachedFacts hostFacts
	cachedErr   error
)

// collectFacts gathers hostFacts once per process and caches the
// result; subsequent calls within the same run are free.
func collectFacts(ctx context.Context) (hostFacts, error) {
	factsOnce.Do(func() {
		cachedFacts, cachedErr = collectFactsUncached()
	})
	return cachedFacts, cachedErr
}

func collectFactsUncached() (hostFacts, error) {
	f := hostFacts{
		OSFamily: goruntime.GOOS,
		Arch:     goruntime.GOARCH,
	}

	if hostname, err := os.Hostname(); err == nil {
		f.Hostname = hostname
		f.FQDN = hostname
		if addrs, err := net.LookupHost(hostname); err == nil && len(addrs) > 0 {
			if names, err := net.LookupAddr(addrs[0]); err == nil && len(names) > 0 {
				f.FQDN = strings.TrimSuffix(names[0], ".")
			}
		}
	}

	if f.OSFamily == "linux" {
		if name, version, err := parseOSRelease("/etc/os-release"); err == nil {
			f.Distro = name
			f.DistroVersion = version
		}
	}

	if kernel, err := readKernelVersion(); err == nil {
		f.Kernel = kernel
	}

	ifaces, defaultRoute, err := collectNetworkFacts()
	if err != nil {
		return f, errdefs.NewTransient("failed to collect network facts", err).
			WithCode(errdefs.CodeFactsCollectionFailed)
	}
	f.Interfaces = ifaces
	f.DefaultRoute = defaultRoute

	return f, nil
}

func parseOSRelease(path string) (name, version string, err error) {
	fh, openErr := os.Open(path)
	if openErr != nil {
		return "", "", openErr
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "NAME="):
			name = strings.Trim(strings.TrimPrefix(line, "NAME="), `"`)
		case strings.HasPrefix(line, "VERSION_ID="):
			version = strings.Trim(strings.TrimPrefix(line, "VERSION_ID="), `"`)
		}
	}
	return name, version, scanner.Err()
}

func readKernelVersion() (string, error) {
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func collectNetworkFacts() ([]networkInterface, string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, "", err
	}

	result := make([]networkInterface, 0, len(ifaces))
	defaultRoute := ""

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		ips := make([]string, 0, len(addrs))
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok {
				ips = append(ips, ipNet.IP.String())
				if defaultRoute == "" && iface.Flags&net.FlagUp != 0 && ipNet.IP.To4() != nil {
					defaultRoute = iface.Name
				}
			}
		}
		result = append(result, networkInterface{
			Name:        iface.Name,
			IPAddresses: ips,
			MACAddress:  iface.HardwareAddr.String(),
		})
	}

	return result, defaultRoute, nil
}

// CollectFacts exposes the engine's host-fact collection to callers
// outside the embedded runtime, such as a CLI preview command, without
// duplicating kernel-version/interface-walking logic.
func CollectFacts(ctx context.Context) (map[string]interface{}, error) {
	facts, err := collectFacts(ctx)
	if err != nil {
		return nil, err
	}
	return facts.asMap(), nil
}

// asMap flattens hostFacts into top-level variables (hostname,
// os_family, ...) that Run merges into the condition scope; network
// interfaces are not included.
func (f hostFacts) asMap() map[string]interface{} {
	return map[string]interface{}{
		"hostname":       f.Hostname,
		"fqdn":           f.FQDN,
		"os_family":      f.OSFamily,
		"distro":         f.Distro,
		"distro_version": f.DistroVersion,
		"arch":           f.Arch,
		"kernel":         f.Kernel,
		"default_route":  f.DefaultRoute,
	}
}
