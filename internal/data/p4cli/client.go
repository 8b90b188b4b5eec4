// Package p4cli serves repository history by shelling out to the Perforce command line client.
package p4cli

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"revwatch/internal/core/errors"
	"revwatch/internal/core/ports"
	"revwatch/internal/data/changes"
)

const DefaultCommandTimeout = 30 * time.Second

type Options struct {
	Bin     string
	Port    string
	User    string
	Client  string
	Timeout time.Duration
}

// Runner executes one p4 invocation and returns stdout and stderr.
type Runner func(ctx context.Context, bin string, args ...string) ([]byte, []byte, error)

type Client struct {
	opts Options
	run  Runner
}

var _ ports.RepositoryClient = (*Client)(nil)

func New(opts Options) *Client {
	return NewWithRunner(opts, execRunner)
}

func NewWithRunner(opts Options, run Runner) *Client {
	if strings.TrimSpace(opts.Bin) == "" {
		opts.Bin = "p4"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCommandTimeout
	}
	return &Client{opts: opts, run: run}
}

func execRunner(ctx context.Context, bin string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (c *Client) FindChanges(ctx context.Context, pathFilters []string, maxCount int) ([]changes.ChangeSummary, error) {
	if maxCount == 0 || len(pathFilters) == 0 {
		return []changes.ChangeSummary{}, nil
	}
	args := []string{"changes", "-l", "-s", "submitted"}
	if maxCount > 0 {
		args = append(args, "-m", strconv.Itoa(maxCount))
	}
	for _, raw := range pathFilters {
		args = append(args, depotSpec(raw))
	}

	out, err := c.p4(ctx, true, args...)
	if err != nil {
		return nil, err
	}
	records := parseTagged(out, "change")
	result := make([]changes.ChangeSummary, 0, len(records))
	for _, r := range records {
		if _, ok := r["change"]; !ok {
			continue
		}
		result = append(result, changes.ChangeSummary{
			Number:      r.int("change"),
			Author:      r["user"],
			Description: r["desc"],
			Timestamp:   r.time("time"),
		})
	}
	return result, nil
}

func (c *Client) FindFileChanges(ctx context.Context, path string, maxCount int) ([]changes.FileChangeSummary, error) {
	args := []string{"filelog", "-l"}
	if maxCount > 0 {
		args = append(args, "-m", strconv.Itoa(maxCount))
	}
	args = append(args, depotSpec(path))

	out, err := c.p4(ctx, true, args...)
	if err != nil {
		return nil, err
	}

	var result []changes.FileChangeSummary
	for _, r := range parseTagged(out, "depotFile") {
		file := r["depotFile"]
		for i := 0; ; i++ {
			suffix := strconv.Itoa(i)
			if _, ok := r["rev"+suffix]; !ok {
				break
			}
			result = append(result, changes.FileChangeSummary{
				Path:        file,
				Revision:    r.int("rev" + suffix),
				Number:      r.int("change" + suffix),
				Action:      r["action"+suffix],
				Author:      r["user"+suffix],
				Description: r["desc"+suffix],
				Timestamp:   r.time("time" + suffix),
			})
		}
	}
	if len(result) == 0 {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "no such file(s)"), errors.CtxPath, path)
	}
	sortNewestFirst(result)
	if maxCount > 0 && len(result) > maxCount {
		result = result[:maxCount]
	}
	return result, nil
}

func (c *Client) Print(ctx context.Context, path string) ([]string, error) {
	out, err := c.p4(ctx, false, "print", "-q", path)
	if err != nil {
		return nil, err
	}
	out = strings.TrimSuffix(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

// GetActiveContext returns the stream the workspace is bound to.
func (c *Client) GetActiveContext(ctx context.Context) (string, bool) {
	out, err := c.p4(ctx, true, "client", "-o")
	if err != nil {
		return "", false
	}
	for _, r := range parseTagged(out, "Client") {
		if stream := strings.TrimSpace(r["Stream"]); stream != "" {
			return stream, true
		}
	}
	return "", false
}

func (c *Client) p4(ctx context.Context, tagged bool, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	full := c.globalArgs()
	if tagged {
		full = append(full, "-ztag")
	}
	full = append(full, args...)

	stdout, stderr, err := c.run(ctx, c.opts.Bin, full...)
	msg := strings.TrimSpace(string(stderr))
	if isNotFound(msg) {
		// Some filters matched: the warning only covers the others.
		if len(bytes.TrimSpace(stdout)) > 0 {
			return string(stdout), nil
		}
		return "", errors.AddContext(errors.New(errors.CodeNotFound, msg), errors.CtxOperation, args[0])
	}
	if err != nil {
		if msg == "" {
			msg = err.Error()
		}
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("timed out after %s", c.opts.Timeout)
		}
		return "", errors.AddContext(errors.Wrap(err, errors.CodeTransport, "p4 "+args[0]+": "+msg), errors.CtxOperation, args[0])
	}
	return string(stdout), nil
}

func (c *Client) globalArgs() []string {
	var out []string
	if c.opts.Port != "" {
		out = append(out, "-p", c.opts.Port)
	}
	if c.opts.User != "" {
		out = append(out, "-u", c.opts.User)
	}
	if c.opts.Client != "" {
		out = append(out, "-c", c.opts.Client)
	}
	return out
}

func isNotFound(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "no such file(s)") ||
		strings.Contains(lower, "not in client view") ||
		strings.Contains(lower, "no file(s) at that changelist")
}

// depotSpec rewrites the "path@>N" filter form into a p4 revision range.
func depotSpec(raw string) string {
	f := changes.ParseFilter(raw)
	if !f.HasAfter {
		return f.Path
	}
	return fmt.Sprintf("%s@%d,#head", f.Path, f.After+1)
}

func sortNewestFirst(list []changes.FileChangeSummary) {
	slices.SortStableFunc(list, func(a, b changes.FileChangeSummary) int {
		if a.Number != b.Number {
			return b.Number - a.Number
		}
		return b.Revision - a.Revision
	})
}
