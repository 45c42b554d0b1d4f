package probe

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// iffUp is IFF_UP from <linux/if.h>: the interface is administratively up.
const iffUp = 0x1

// Adapter is one element of the adapters payload.
type Adapter struct {
	Name                 string  `json:"Name"`
	InterfaceDescription string  `json:"InterfaceDescription"`
	MacAddress           string  `json:"MacAddress"`
	LinkSpeed            string  `json:"LinkSpeed"`
	Status               string  `json:"Status"`
	IPv4Address          *string `json:"IPv4Address"`
	IPv6Address          *string `json:"IPv6Address"`
	DriverVersion        *string `json:"DriverVersion"`
	DriverDate           *string `json:"DriverDate"`
}

// Adapters lists /sys/class/net.
func (p *Probe) Adapters() ([]Adapter, error) {
	entries, err := os.ReadDir(p.path("sys", "class", "net"))
	if err != nil {
		return nil, fmt.Errorf("read /sys/class/net: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		a := Adapter{
			Name:       name,
			MacAddress: p.readString("sys", "class", "net", name, "address"),
			LinkSpeed:  linkSpeed(p.readString("sys", "class", "net", name, "speed")),
			Status:     p.status(name),
		}

		driver := p.driver(name)
		a.InterfaceDescription = name
		if driver != "" {
			a.InterfaceDescription = fmt.Sprintf("%s (%s)", name, driver)
			if v := p.readString("sys", "module", driver, "version"); v != "" {
				a.DriverVersion = &v
			}
		}

		if p.Addrs != nil {
			if addrs, err := p.Addrs(name); err == nil {
				a.IPv4Address, a.IPv6Address = firstAddrs(addrs)
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (p *Probe) status(name string) string {
	flags, err := strconv.ParseInt(p.readString("sys", "class", "net", name, "flags"), 0, 64)
	if err == nil && flags&iffUp == 0 {
		return "Disabled"
	}
	switch p.readString("sys", "class", "net", name, "operstate") {
	case "up":
		return "Up"
	case "unknown":
		// Loopback and some virtual links never report operstate.
		if p.readString("sys", "class", "net", name, "carrier") == "1" {
			return "Up"
		}
	}
	return "Down"
}

func (p *Probe) driver(name string) string {
	target, err := os.Readlink(p.path("sys", "class", "net", name, "device", "driver"))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

// linkSpeed renders /sys speed (Mb/s) the way Windows reports it.
func linkSpeed(mbps string) string {
	n, err := strconv.Atoi(mbps)
	if err != nil || n <= 0 {
		return ""
	}
	if n >= 1000 && n%1000 == 0 {
		return fmt.Sprintf("%d Gbps", n/1000)
	}
	return fmt.Sprintf("%d Mbps", n)
}

func firstAddrs(addrs []net.Addr) (v4, v6 *string) {
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		default:
			continue
		}
		s := ip.String()
		if ip.To4() != nil {
			if v4 == nil {
				v4 = &s
			}
		} else if v6 == nil {
			v6 = &s
		}
	}
	return v4, v6
}
