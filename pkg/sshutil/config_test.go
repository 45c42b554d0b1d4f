package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestParseSSHConfigFile(t *testing.T) {
	path := writeSSHConfig(t, `
Host win-desktop
    HostName 192.168.1.100
    User admin
    Port 22
    IdentityFile ~/.ssh/id_desktop

Host lab-laptop
    HostName laptop.lan
    User ops

Host *
    ServerAliveInterval 60

Host work-*
    User workuser
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)

	// Wildcards are excluded, remaining hosts are sorted
	require.Len(t, hosts, 2)
	assert.Equal(t, "lab-laptop", hosts[0].Alias)
	assert.Equal(t, "win-desktop", hosts[1].Alias)

	desktop := hosts[1]
	assert.Equal(t, "192.168.1.100", desktop.Hostname)
	assert.Equal(t, "admin", desktop.User)
	assert.Equal(t, "22", desktop.Port)
	assert.Contains(t, desktop.IdentityFile, "id_desktop")

	laptop := hosts[0]
	assert.Equal(t, "laptop.lan", laptop.Hostname)
	assert.Equal(t, "", laptop.Port)
}

func TestParseSSHConfigFile_NotExists(t *testing.T) {
	hosts, err := ParseSSHConfigFile(filepath.Join(t.TempDir(), "missing"))
	assert.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestParseSSHConfigFile_StopsAtMatch(t *testing.T) {
	path := writeSSHConfig(t, `
Host before-match
    HostName before.example.com

Match host *.example.com
    User matchuser

Host after-match
    HostName after.example.com
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "before-match", hosts[0].Alias)
}

func TestParseSSHConfigFile_DuplicateAndMultiplePatterns(t *testing.T) {
	path := writeSSHConfig(t, `
Host alpha beta
    HostName shared.lan

Host alpha
    User other
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, Aliases(hosts))
}

func TestSSHHostEntry_Description(t *testing.T) {
	tests := []struct {
		name  string
		entry SSHHostEntry
		want  string
	}{
		{"alias only", SSHHostEntry{Alias: "box"}, "box"},
		{"hostname same as alias", SSHHostEntry{Alias: "box", Hostname: "box"}, "box"},
		{"full", SSHHostEntry{Alias: "box", Hostname: "10.0.0.5", User: "admin", Port: "2222"}, "10.0.0.5, user: admin, port: 2222"},
		{"default port hidden", SSHHostEntry{Alias: "box", Port: "22", User: "admin"}, "user: admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Description())
		})
	}
}

func TestCompletionEntries(t *testing.T) {
	hosts := []SSHHostEntry{{Alias: "box", Hostname: "10.0.0.5"}}
	assert.Equal(t, []string{"box\t10.0.0.5"}, CompletionEntries(hosts))
}
