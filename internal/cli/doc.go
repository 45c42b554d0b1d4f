// Package cli implements the netpilot command-line interface.
//
// Each command is a package-level cobra.Command registered on rootCmd in an
// init function. Commands load configuration, build an engine.Engine and
// hand it to a front end: the Bubble Tea dashboard, a one-shot table or
// JSON writer, or the WebSocket feed.
//
// # Command Structure
//
//	netpilot monitor                - Live dashboard
//	netpilot snapshot               - Run every query once and print the result
//	netpilot adapter enable <name>  - Enable an adapter
//	netpilot adapter disable <name> - Disable an adapter (asks first)
//	netpilot dns flush              - Clear the resolver cache
//	netpilot ip renew               - Release and renew DHCP leases
//	netpilot stack reset            - Reset the TCP/IP stack (asks first)
//	netpilot kill <pid>             - Terminate a process (asks first)
//	netpilot wifi list              - List Wi-Fi networks in range
//	netpilot wifi status            - Show the Wi-Fi connection and saved profiles
//	netpilot wifi connect <ssid>    - Join a network by profile or password
//	netpilot wifi disconnect        - Leave the current network (asks first)
//	netpilot wifi forget <ssid>     - Delete a saved profile (asks first)
//	netpilot traceroute <host>      - Trace the route to a host
//	netpilot serve                  - Serve snapshots over HTTP and WebSocket
//	netpilot history                - Show recorded throughput samples
//	netpilot version                - Print version information
//	netpilot completion <shell>     - Generate shell completion scripts
//
// # Flag Handling
//
// Global flags (--config, --verbose, --no-color, --host) live on the root
// command. --host points every query at a remote machine over SSH and
// completes from ~/.ssh/config. Commands that print data take --format and
// --timeout through AddOutputFlags; destructive actions add --yes.
//
// # Errors
//
// Commands return *errors.Error values. Execute prints them with their
// suggestion and exits 1, or with the code carried by an ExitError.
package cli
