// ABOUTME: mDNS service discovery for the live link bridge
// ABOUTME: Advertises channel ports and sample rate; lets senders find a bridge
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// ServiceType is the advertised DNS-SD service type
const ServiceType = "_a2f-livelink._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName   string
	AnimationPort int
	AudioPort     int
	SampleRate    int
	SourceID      string
	Version       string
	Logger        *zap.SugaredLogger
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	log    *zap.SugaredLogger

	mu     sync.Mutex
	server *mdns.Server
}

// ServiceInfo describes a discovered bridge
type ServiceInfo struct {
	Name          string
	Host          string
	AnimationPort int
	AudioPort     int
	SampleRate    int
	SourceID      string
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	return &Manager{config: config, log: config.Logger}
}

// TXT returns the advertised TXT records
func (m *Manager) TXT() []string {
	txt := []string{
		"animation_port=" + strconv.Itoa(m.config.AnimationPort),
		"audio_port=" + strconv.Itoa(m.config.AudioPort),
		"sample_rate=" + strconv.Itoa(m.config.SampleRate),
	}
	if m.config.SourceID != "" {
		txt = append(txt, "source_id="+m.config.SourceID)
	}
	if m.config.Version != "" {
		txt = append(txt, "version="+m.config.Version)
	}
	return txt
}

// Advertise advertises the bridge via mDNS on the animation port
func (m *Manager) Advertise() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		return fmt.Errorf("already advertising")
	}

	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.AnimationPort,
		ips,
		m.TXT(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	m.log.Infof("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.AnimationPort, ServiceType)
	return nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return
	}
	if err := m.server.Shutdown(); err != nil {
		m.log.Warnf("mDNS shutdown error: %v", err)
	}
	m.server = nil
}

// Browse queries for bridges until timeout or ctx is done
func Browse(ctx context.Context, timeout time.Duration) ([]ServiceInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []ServiceInfo
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if !strings.Contains(entry.Name, ServiceType) {
				continue
			}
			found = append(found, parseEntry(entry))
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	errc := make(chan error, 1)
	go func() { errc <- mdns.Query(params) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
		<-errc
	}
	close(entries)
	<-done

	if err != nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, nil
}

func parseEntry(entry *mdns.ServiceEntry) ServiceInfo {
	info := ServiceInfo{
		Name:          strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		AnimationPort: entry.Port,
	}
	if entry.AddrV4 != nil {
		info.Host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		info.Host = entry.AddrV6.String()
	}
	applyTXT(&info, entry.InfoFields)
	return info
}

func applyTXT(info *ServiceInfo, fields []string) {
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch key {
		case "animation_port":
			if n, err := strconv.Atoi(value); err == nil {
				info.AnimationPort = n
			}
		case "audio_port":
			if n, err := strconv.Atoi(value); err == nil {
				info.AudioPort = n
			}
		case "sample_rate":
			if n, err := strconv.Atoi(value); err == nil {
				info.SampleRate = n
			}
		case "source_id":
			info.SourceID = value
		}
	}
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
