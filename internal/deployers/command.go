package deployers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/provisio/prov/internal/product"
)

// DefaultRebootExitCode is the exit code a command uses to report success
// with a reboot required.
const DefaultRebootExitCode = 3010

// commandDeployer runs a shell command per operation in the target folder.
//
// Parameters:
//
//	deploy, undeploy, start, stop  command line for the operation; empty is a no-op
//	dir                            working folder relative to the target (default: the target)
//	shell                          interpreter invoked with -c (default: sh)
//	reboot-exit-code               exit code mapped to NEED_REBOOT (default: 3010 or the configured code)
//
// The command sees the component context as PROV_* environment variables
// and every product parameter as PROV_PARAM_<NAME>.
type commandDeployer struct {
	base
	commands map[string]string
	dir      string
	shell    string
	reboot   int
}

func (d *commandDeployer) Init(_ context.Context, dc product.Context, params map[string]string) error {
	if err := d.init(TypeCommand, dc); err != nil {
		return err
	}

	dir, err := resolveTarget(dc.Target, params["dir"])
	if err != nil {
		return fmt.Errorf("command: %w", err)
	}
	d.dir = dir

	d.shell = params["shell"]
	if d.shell == "" {
		d.shell = "sh"
	}

	if d.reboot == 0 {
		d.reboot = DefaultRebootExitCode
	}
	if v := params["reboot-exit-code"]; v != "" {
		if d.reboot, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("command: parameter reboot-exit-code: %q is not a number", v)
		}
	}

	d.commands = make(map[string]string, 4)
	for _, op := range []string{"deploy", "undeploy", "start", "stop"} {
		if c := strings.TrimSpace(params[op]); c != "" {
			d.commands[op] = c
		}
	}
	if len(d.commands) == 0 {
		return fmt.Errorf("command: component %s: no command given for any operation", dc.Component)
	}
	return nil
}

func (d *commandDeployer) Deploy(ctx context.Context) product.Result {
	return d.run(ctx, "deploy")
}

func (d *commandDeployer) Undeploy(ctx context.Context) product.Result {
	return d.run(ctx, "undeploy")
}

func (d *commandDeployer) Start(ctx context.Context) product.Result {
	return d.run(ctx, "start")
}

func (d *commandDeployer) Stop(ctx context.Context) product.Result {
	return d.run(ctx, "stop")
}

func (d *commandDeployer) run(ctx context.Context, op string) product.Result {
	line, ok := d.commands[op]
	if !ok {
		return product.OK
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return d.fail(op, err)
	}

	cmd := exec.CommandContext(ctx, d.shell, "-c", line)
	cmd.Dir = d.dir
	cmd.Env = append(os.Environ(), d.env()...)
	cmd.WaitDelay = 5 * time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	d.log.Debug("command finished", "op", op, "duration", time.Since(start).Round(time.Millisecond))
	if s := strings.TrimSpace(out.String()); s != "" {
		d.log.Debug("command output", "op", op, "output", s)
	}

	if err == nil {
		return product.OK
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return d.fail(op, fmt.Errorf("running %s: %w", d.shell, err))
	}
	if d.isReboot(exitErr.ExitCode()) {
		d.log.Warn("reboot required", "op", op)
		return product.NeedReboot
	}
	return d.fail(op, fmt.Errorf("command exited with code %d: %s", exitErr.ExitCode(), tail(out.String(), 512)))
}

// isReboot matches code against the reboot exit code. POSIX exit statuses
// are truncated to 8 bits.
func (d *commandDeployer) isReboot(code int) bool {
	return code == d.reboot || (runtime.GOOS != "windows" && code == d.reboot&0xff)
}

// env returns the component context as environment variables.
func (d *commandDeployer) env() []string {
	env := []string{
		"PROV_PRODUCT=" + d.dc.Product,
		"PROV_VERSION=" + d.dc.Version,
		"PROV_COMPONENT=" + d.dc.Component,
		"PROV_ARTIFACT=" + d.dc.Artifact.String(),
		"PROV_ARTIFACT_FILE=" + d.dc.ArtifactFile(),
		"PROV_TARGET=" + d.dc.Target,
	}

	keys := make([]string, 0, len(d.dc.Params))
	for k := range d.dc.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, "PROV_PARAM_"+envName(k)+"="+d.dc.Params[k])
	}
	return env
}

func envName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, key)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
