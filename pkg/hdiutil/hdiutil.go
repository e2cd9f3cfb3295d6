// Package hdiutil wraps the macOS disk-image utility as a subprocess.
// All wrappers are stateless: each call spawns one tool invocation and
// returns its parsed output or a typed *Error. Passwords are always fed
// over the child's standard input, never as command-line arguments, so
// they cannot leak into process listings.
package hdiutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Default tool binaries. Both can be overridden for tests or unusual
// installations via options.
const (
	DefaultBinary         = "hdiutil"
	DefaultDiskutilBinary = "diskutil"
)

// Error is returned when a tool invocation exits nonzero. Diagnostic
// preserves the tool's stderr verbatim so callers can classify the
// failure or show it to an operator.
type Error struct {
	Op         string // tool subcommand, e.g. "attach"
	ExitCode   int
	Diagnostic string
}

func (e *Error) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("hdiutil: %s exited with status %d", e.Op, e.ExitCode)
	}
	return fmt.Sprintf("hdiutil: %s failed: %s", e.Op, e.Diagnostic)
}

// Runner executes a command and returns its stdout. Implementations must
// write stdin to the child before waiting for it to exit.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), &Error{
			ExitCode:   exitErr.ExitCode(),
			Diagnostic: strings.TrimSpace(stderr.String()),
		}
	}
	return nil, err
}

// Client invokes the disk-image utility. The zero value is not usable;
// construct with New.
type Client struct {
	bin      string
	diskutil string
	run      Runner
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the hdiutil binary path.
func WithBinary(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.bin = path
		}
	}
}

// WithDiskutilBinary overrides the diskutil binary path.
func WithDiskutilBinary(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.diskutil = path
		}
	}
}

// WithRunner replaces the subprocess runner. Used by tests.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.run = r }
}

// New creates a Client with the default binaries.
func New(opts ...Option) *Client {
	c := &Client{
		bin:      DefaultBinary,
		diskutil: DefaultDiskutilBinary,
		run:      execRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// exec runs one hdiutil subcommand and stamps the op on any tool error.
func (c *Client) exec(ctx context.Context, op string, stdin []byte, args ...string) ([]byte, error) {
	out, err := c.run.Run(ctx, stdin, c.bin, append([]string{op}, args...)...)
	if err != nil {
		var toolErr *Error
		if errors.As(err, &toolErr) {
			toolErr.Op = op
			return out, toolErr
		}
		return out, fmt.Errorf("hdiutil: %s: %w", op, err)
	}
	return out, nil
}

// CreateOptions describes a new encrypted sparse container.
type CreateOptions struct {
	BundlePath string // where the container is written
	VolumeName string // volume name the OS shows when mounted
	SizeMB     int64  // maximum growable size in megabytes
	Password   string
}

// Create makes a new encrypted, growable container. The container is
// sparse: SizeMB bounds future growth without pre-allocating space.
func (c *Client) Create(ctx context.Context, opts CreateOptions) error {
	args := []string{
		"-size", fmt.Sprintf("%dm", opts.SizeMB),
		"-type", "SPARSEBUNDLE",
		"-fs", "APFS",
		"-encryption", "AES-256",
		"-volname", opts.VolumeName,
		"-stdinpass",
		"-quiet",
		opts.BundlePath,
	}
	_, err := c.exec(ctx, "create", []byte(opts.Password), args...)
	return err
}

// Attach mounts an existing container and returns the system entities
// parsed from the tool's property-list output.
func (c *Client) Attach(ctx context.Context, bundlePath, password string) ([]Entity, error) {
	out, err := c.exec(ctx, "attach", []byte(password), bundlePath, "-stdinpass", "-plist", "-nobrowse")
	if err != nil {
		return nil, err
	}
	doc, err := parseAttach(out)
	if err != nil {
		return nil, err
	}
	return doc.Entities, nil
}

// Detach unmounts the volume at mountPath. With force the OS is asked to
// eject the volume even while busy.
func (c *Client) Detach(ctx context.Context, mountPath string, force bool) error {
	args := []string{mountPath}
	if force {
		args = append(args, "-force")
	}
	_, err := c.exec(ctx, "detach", nil, args...)
	return err
}

// ChangePassword re-keys a container in place. The tool reads the old
// password, the new password, and the new password again (confirmation)
// as three newline-terminated values from stdin.
func (c *Client) ChangePassword(ctx context.Context, bundlePath, oldPassword, newPassword string) error {
	stdin := []byte(oldPassword + "\n" + newPassword + "\n" + newPassword + "\n")
	_, err := c.exec(ctx, "chpass", stdin, bundlePath)
	return err
}

// Compact reclaims space left by deleted content inside a sparse
// container. The container must not be mounted.
func (c *Client) Compact(ctx context.Context, bundlePath string) error {
	_, err := c.exec(ctx, "compact", nil, bundlePath)
	return err
}

// Info lists all containers currently attached system-wide.
func (c *Client) Info(ctx context.Context) ([]Image, error) {
	out, err := c.exec(ctx, "info", nil, "-plist")
	if err != nil {
		return nil, err
	}
	doc, err := parseInfo(out)
	if err != nil {
		return nil, err
	}
	return doc.Images, nil
}

// VolumeUUID returns the UUID of the volume containing path, via
// diskutil. Callers treat failures as non-fatal.
func (c *Client) VolumeUUID(ctx context.Context, path string) (string, error) {
	out, err := c.run.Run(ctx, nil, c.diskutil, "info", "-plist", path)
	if err != nil {
		var toolErr *Error
		if errors.As(err, &toolErr) {
			toolErr.Op = "diskutil info"
			return "", toolErr
		}
		return "", fmt.Errorf("diskutil: info: %w", err)
	}
	return parseVolumeUUID(out)
}
