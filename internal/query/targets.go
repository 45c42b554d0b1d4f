package query

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rileyhilliard/netpilot/internal/errors"
)

// DefaultMaxHops bounds a traceroute when max_hops is not set.
const DefaultMaxHops = 30

var hostnameRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9.])?$`)

// ValidateHost checks a traceroute target: an IP literal or a host name.
// Names never start with a dash, so a target can't be read as an option.
func ValidateHost(s string) (string, error) {
	host := strings.TrimSpace(s)
	if host == "" {
		return "", errors.New(errors.ErrAction, "Target host is required", "Pass a host name or an IP address, e.g. 8.8.8.8")
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return host, nil
	}
	if len(host) > 253 || !hostnameRe.MatchString(host) {
		return "", errors.New(errors.ErrAction,
			fmt.Sprintf("'%s' is not a host name or IP address", s),
			"Pass a host name or an IP address, e.g. 8.8.8.8")
	}
	return host, nil
}

// ValidateSSID checks a network or profile name. SSIDs are at most 32
// bytes and may contain spaces but no control characters.
func ValidateSSID(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", errors.New(errors.ErrAction, "Network name is required", "Pass the SSID as shown by 'netpilot wifi list'")
	}
	if len(s) > 32 {
		return "", errors.New(errors.ErrAction,
			fmt.Sprintf("'%s' is longer than 32 bytes", s), "SSIDs are at most 32 bytes")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", errors.New(errors.ErrAction,
				fmt.Sprintf("%q contains control characters", s), "")
		}
	}
	return s, nil
}

// maxHops reads ParamMaxHops, falling back to DefaultMaxHops.
func maxHops(d Descriptor) int {
	n, err := strconv.Atoi(d.Params[ParamMaxHops])
	if err != nil || n < 1 || n > 255 {
		return DefaultMaxHops
	}
	return n
}
