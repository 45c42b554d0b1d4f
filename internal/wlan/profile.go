// Package wlan knows the wireless tooling of each platform: it renders the
// WLAN profile documents netsh imports on Windows, and collects networks,
// the current association and saved connections from nmcli on Linux.
package wlan

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const profileNamespace = "http://www.microsoft.com/networking/WLAN/profile/v1"

// Security names as netsh prints them, mapped to profile values.
var (
	authentications = map[string]string{
		"WPA2-Personal": "WPA2PSK",
		"WPA3-Personal": "WPA3SAE",
		"WPA-Personal":  "WPAPSK",
		"Open":          "open",
		"WEP":           "open",
	}
	encryptions = map[string]string{
		"CCMP": "AES",
		"GCMP": "AES",
		"TKIP": "TKIP",
		"None": "none",
		"WEP":  "WEP",
	}
)

type profile struct {
	XMLName        xml.Name `xml:"WLANProfile"`
	Namespace      string   `xml:"xmlns,attr"`
	Name           string   `xml:"name"`
	SSID           string   `xml:"SSIDConfig>SSID>name"`
	ConnectionType string   `xml:"connectionType"`
	ConnectionMode string   `xml:"connectionMode"`
	Security       security `xml:"MSM>security"`
}

type security struct {
	Authentication string     `xml:"authEncryption>authentication"`
	Encryption     string     `xml:"authEncryption>encryption"`
	UseOneX        bool       `xml:"authEncryption>useOneX"`
	SharedKey      *sharedKey `xml:"sharedKey,omitempty"`
}

type sharedKey struct {
	KeyType     string `xml:"keyType"`
	Protected   bool   `xml:"protected"`
	KeyMaterial string `xml:"keyMaterial"`
}

// ProfileXML renders an auto-connect profile for ssid. authentication and
// encryption are the netsh names shown in the network list; unknown names
// default to WPA2 with AES. Without a key the profile is open.
func ProfileXML(ssid, authentication, encryption, key string) (string, error) {
	if strings.TrimSpace(ssid) == "" {
		return "", fmt.Errorf("ssid is required")
	}

	auth, ok := authentications[authentication]
	if !ok {
		auth = "WPA2PSK"
	}
	enc, ok := encryptions[encryption]
	if !ok {
		enc = "AES"
	}

	p := profile{
		Namespace:      profileNamespace,
		Name:           ssid,
		SSID:           ssid,
		ConnectionType: "ESS",
		ConnectionMode: "auto",
	}
	if key == "" {
		p.Security.Authentication = "open"
		p.Security.Encryption = "none"
	} else {
		keyType := "passPhrase"
		if auth == "open" && enc == "WEP" {
			keyType = "networkKey"
		}
		p.Security.Authentication = auth
		p.Security.Encryption = enc
		p.Security.SharedKey = &sharedKey{KeyType: keyType, KeyMaterial: key}
	}

	out, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}
