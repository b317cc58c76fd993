package cmd

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// defaultAddr is where serve listens when nothing else is configured.
const defaultAddr = "127.0.0.1:3400"

// serveArgs returns the command line arguments after "paperbase serve".
func serveArgs() []string {
	if len(os.Args) > 2 {
		return os.Args[2:]
	}
	return nil
}

// parseServeAddr resolves the listen address for the serve command.
// Precedence: positional argument or --addr flag, then the PAPERBASE_ADDR
// environment variable, then defaultAddr. A bare port like "8080" is
// shorthand for ":8080".
func parseServeAddr(args []string) (string, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addrFlag := fs.String("addr", "", "Listen address (host:port)")

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		*addrFlag = args[0]
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parsing serve flags: %w", err)
	}

	addr := *addrFlag
	if addr == "" {
		addr = os.Getenv("PAPERBASE_ADDR")
	}
	if addr == "" {
		addr = defaultAddr
	}
	if !strings.Contains(addr, ":") {
		if _, err := strconv.Atoi(addr); err == nil {
			addr = ":" + addr
		}
	}

	if err := validateAddr(addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return addr, nil
}

// validateAddr checks that addr is a usable host:port listen address.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}

	if port == "" {
		return errors.New("port is required")
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if n < 0 || n > 65535 {
		return fmt.Errorf("port out of range: %d", n)
	}

	switch {
	case host == "", host == "localhost":
		return nil
	case net.ParseIP(host) != nil:
		return nil
	case strings.ContainsAny(host, " \t\r\n"):
		return fmt.Errorf("invalid host: %q", host)
	}
	return nil
}
