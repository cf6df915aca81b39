package connectivity

import (
	"context"
	"net"
)

// HostLink is used when the host manages networking itself (wired boards,
// development machines). Join is a no-op and the link is up while any
// non-loopback interface is up with an address.
type HostLink struct {
	interfaces func() ([]net.Interface, error)
}

// NewHostLink creates a HostLink over the system interfaces.
func NewHostLink() *HostLink {
	return &HostLink{interfaces: net.Interfaces}
}

func (h *HostLink) Join(_ context.Context, _, _ string) error { return nil }

func (h *HostLink) Leave() error { return nil }

func (h *HostLink) Connected() bool {
	ifaces, err := h.interfaces()
	if err != nil {
		return false
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
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && !ipnet.IP.IsLinkLocalUnicast() {
				return true
			}
		}
	}
	return false
}
