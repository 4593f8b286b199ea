package protocol

import (
	"fmt"
	"net"
	"strings"

	"github.com/menmos/menmos/pkg/types"
)

// RedirectURLBuilder builds the URL the directory 307-redirects a
// client to for a given storage node and path, as seen from a given
// requester address. Kept behind an interface so directory tests can
// substitute a fake even though DefaultRedirectBuilder is small and
// fully specified by spec.md §6.
type RedirectURLBuilder interface {
	BuildURL(node *types.StorageNodeInfo, requesterIP net.IP, path string, useTLS bool, rootDomain string) (string, error)
}

// DefaultRedirectBuilder implements spec.md §6's redirect construction
// rules directly.
type DefaultRedirectBuilder struct{}

// BuildURL returns the redirect URL for node. If useTLS is false, it
// is `http://{ip}:{port}/{path}`. If true, it is
// `https://{ip-with-dots-as-dashes}.{rootDomain}:{port}/{path}`, so a
// wildcard certificate on `*.{rootDomain}` covers every storage node.
// The chosen ip is resolved by ResolveAddress.
func (DefaultRedirectBuilder) BuildURL(node *types.StorageNodeInfo, requesterIP net.IP, path string, useTLS bool, rootDomain string) (string, error) {
	ip, err := ResolveAddress(node.RedirectInfo, requesterIP)
	if err != nil {
		return "", fmt.Errorf("protocol: resolve redirect address for node %q: %w", node.ID, err)
	}

	path = strings.TrimPrefix(path, "/")

	if !useTLS {
		return fmt.Sprintf("http://%s:%d/%s", ip, node.Port, path), nil
	}

	subdomain := strings.ReplaceAll(ip.String(), ".", "-")
	return fmt.Sprintf("https://%s.%s:%d/%s", subdomain, rootDomain, node.Port, path), nil
}

// ResolveAddress picks the IP a requester should use to reach a
// storage node, per spec.md §6 and invariant 8: for RedirectInfo with
// a fixed StaticIP, that address always wins. For automatic
// RedirectInfo, a requester coming from the node's own public address,
// or sharing its subnet, gets LocalIP; every other requester gets
// PublicIP.
func ResolveAddress(info types.RedirectInfo, requesterIP net.IP) (net.IP, error) {
	if !info.Automatic {
		if info.StaticIP == nil {
			return nil, fmt.Errorf("protocol: static redirect info has no static_ip set")
		}
		return info.StaticIP, nil
	}

	if info.PublicIP == nil {
		return nil, fmt.Errorf("protocol: automatic redirect info has no public_ip set")
	}

	if requesterIP != nil && requesterIP.Equal(info.PublicIP) {
		return info.LocalIP, nil
	}
	if sameSubnet(requesterIP, info.LocalIP, info.SubnetMask) {
		return info.LocalIP, nil
	}
	return info.PublicIP, nil
}

func sameSubnet(requesterIP, nodeLocalIP, mask net.IP) bool {
	if requesterIP == nil || nodeLocalIP == nil || mask == nil {
		return false
	}

	req4, local4, mask4 := requesterIP.To4(), nodeLocalIP.To4(), mask.To4()
	if req4 == nil || local4 == nil || mask4 == nil {
		return false
	}

	for i := range mask4 {
		if req4[i]&mask4[i] != local4[i]&mask4[i] {
			return false
		}
	}
	return true
}
