// Package tls issues the certificate the station serves wss:// with, signed
// by a local CA installed into the system trust store, and serves that CA to
// other devices over plain HTTP.
package tls

import (
	"net"
	"slices"
)

// LocalHosts returns localhost, 127.0.0.1 and every LAN IPv4 address, sorted.
func LocalHosts() ([]string, error) {
	hosts := []string{"localhost", "127.0.0.1"}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return hosts, err
	}
	return normalizeHosts(append(hosts, lanIPv4(addrs)...)), nil
}

// lanIPv4 keeps the non-loopback IPv4 addresses of addrs.
func lanIPv4(addrs []net.Addr) []string {
	var ips []string
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
			ips = append(ips, ip.String())
		}
	}
	return ips
}

func normalizeHosts(hosts []string) []string {
	out := slices.Clone(hosts)
	slices.Sort(out)
	return slices.Compact(out)
}
