// Package nmcli drives the Wi-Fi interface through NetworkManager's CLI.
package nmcli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner executes a command with stdin as its input and returns its trimmed
// combined output.
type Runner func(ctx context.Context, stdin, name string, args ...string) (string, error)

// Link joins and leaves networks on one wireless interface. It implements
// connectivity.Link.
type Link struct {
	iface   string
	wait    time.Duration
	timeout time.Duration
	run     Runner
}

// Option configures a Link.
type Option func(*Link)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(l *Link) { l.run = r }
}

// WithJoinWait sets how long nmcli itself waits for a join to finish.
func WithJoinWait(d time.Duration) Option {
	return func(l *Link) { l.wait = d }
}

// New creates a Link for iface.
func New(iface string, opts ...Option) *Link {
	l := &Link{
		iface:   iface,
		wait:    10 * time.Second,
		timeout: 5 * time.Second,
		run:     runCmd,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Available reports whether nmcli is on PATH.
func Available() bool {
	_, err := exec.LookPath("nmcli")
	return err == nil
}

// Join starts association with ssid. An empty secret joins an open network.
//
// Secured networks get a throwaway in-memory profile that is activated with
// the secret on stdin, so it never shows up in the process table.
func (l *Link) Join(ctx context.Context, ssid, secret string) error {
	ctx, cancel := context.WithTimeout(ctx, l.wait+2*l.timeout)
	defer cancel()
	wait := strconv.Itoa(int(l.wait.Seconds()))

	if secret == "" {
		if _, err := l.run(ctx, "", "nmcli", "--wait", wait, "device", "wifi", "connect", ssid, "ifname", l.iface); err != nil {
			return fmt.Errorf("join %q: %w", ssid, err)
		}
		return nil
	}

	profile := profileName(ssid)
	// A profile left by an earlier attempt would make the add fail.
	_, _ = l.run(ctx, "", "nmcli", "connection", "delete", "id", profile)
	if _, err := l.run(ctx, "", "nmcli", "connection", "add", "save", "no",
		"type", "wifi", "con-name", profile, "ifname", l.iface, "ssid", ssid,
		"connection.autoconnect", "no",
		"wifi-sec.key-mgmt", "wpa-psk",
		"wifi-sec.psk-flags", "2", // not saved
	); err != nil {
		return fmt.Errorf("join %q: create profile: %w", ssid, err)
	}

	stdin := "802-11-wireless-security.psk:" + secret + "\n"
	if _, err := l.run(ctx, stdin, "nmcli", "--wait", wait, "connection", "up", "id", profile, "passwd-file", "/dev/stdin"); err != nil {
		return fmt.Errorf("join %q: %w", ssid, redact(err, secret))
	}
	return nil
}

func profileName(ssid string) string {
	return "weather-station-" + ssid
}

// Connected reports whether the interface is in the "connected" state.
func (l *Link) Connected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	out, err := l.run(ctx, "", "nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "device", "status")
	if err != nil {
		return false
	}
	state, ok := deviceState(out, l.iface)
	return ok && state == "connected"
}

// Leave disconnects the interface.
func (l *Link) Leave() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if _, err := l.run(ctx, "", "nmcli", "device", "disconnect", l.iface); err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	return nil
}

// deviceState finds iface in terse "DEVICE:TYPE:STATE" output.
func deviceState(out, iface string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Split(sc.Text(), ":")
		if len(fields) < 3 || fields[0] != iface {
			continue
		}
		return fields[2], true
	}
	return "", false
}

func runCmd(ctx context.Context, stdin, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	s := strings.TrimSpace(string(out))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return s, fmt.Errorf("command timed out: %s", name)
	}
	if err != nil {
		if s != "" {
			return s, fmt.Errorf("%s: %w: %s", name, err, s)
		}
		return s, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// redact keeps a Wi-Fi secret out of error messages and logs.
func redact(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), secret, "***"))
}
