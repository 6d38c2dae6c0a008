package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"sensorroom/internal/shared"
)

const correlationHeader = "X-Correlation-ID"

// maxParallelProbes bounds how many probe commands run at once.
const maxParallelProbes = 8

type Agent struct {
	ConfigPath string
	Cfg        *shared.AgentConfig
	Client     *http.Client
	Log        *slog.Logger
}

func New(configPath string, log *slog.Logger) (*Agent, error) {
	cfg, err := shared.LoadAgentConfig(configPath)
	if err != nil {
		return nil, errors.Annotatef(err, "loading agent config %s", configPath)
	}
	if cfg.ServerURL == "" {
		return nil, errors.NotValidf("empty server_url in %s", configPath)
	}
	return &Agent{
		ConfigPath: configPath,
		Cfg:        cfg,
		Client:     &http.Client{Timeout: 20 * time.Second},
		Log:        log,
	}, nil
}

// Interval is the configured pause between report rounds.
func (a *Agent) Interval() time.Duration {
	return time.Duration(a.Cfg.IntervalSeconds) * time.Second
}

// ReportOnce runs every probe and pushes each reading. A failing probe
// does not stop the others; the returned error counts the failures.
func (a *Agent) ReportOnce(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(maxParallelProbes)

	failed := make([]bool, len(a.Cfg.Probes))
	for i, p := range a.Cfg.Probes {
		i, p := i, p
		g.Go(func() error {
			if err := a.report(ctx, p); err != nil {
				a.Log.WarnContext(ctx, "probe failed", "sensor_id", p.SensorID, "error", err)
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	if n > 0 {
		return errors.Errorf("%d of %d probes failed", n, len(a.Cfg.Probes))
	}
	return nil
}

func (a *Agent) report(ctx context.Context, p shared.Probe) error {
	exitCode, out, errOut := execCommand(ctx, p)
	if exitCode != 0 {
		return errors.Errorf("exit code %d: %s", exitCode, strings.TrimSpace(errOut))
	}
	v, err := parseReading(out)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(a.pushReading(ctx, p.SensorID, v))
}

// parseReading accepts a number or a boolean word on the first line of
// the probe's output.
func parseReading(out string) (shared.Value, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "true", "on":
		return 1, nil
	case "false", "off":
		return 0, nil
	}
	f, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, errors.NotValidf("reading %q", line)
	}
	return shared.Value(f), nil
}

func (a *Agent) pushReading(ctx context.Context, sensorID string, v shared.Value) error {
	body, err := json.Marshal(shared.SensorUpdate{Value: &v})
	if err != nil {
		return errors.Trace(err)
	}

	u := strings.TrimRight(a.Cfg.ServerURL, "/") + "/sensors/" + url.PathEscape(sensorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return errors.Trace(err)
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Cfg.APIToken)
	req.Header.Set(correlationHeader, id)

	resp, err := a.Client.Do(req)
	if err != nil {
		return errors.Annotatef(err, "push %s", sensorID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("push %s failed (%d, correlation %s): %s", sensorID, resp.StatusCode, id, strings.TrimSpace(string(b)))
	}
	a.Log.DebugContext(ctx, "reading pushed", "sensor_id", sensorID, "value", float64(v), "correlation_id", id)
	return nil
}

func execCommand(ctx context.Context, p shared.Probe) (int, string, string) {
	timeout := time.Duration(p.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd

	switch strings.ToLower(p.Shell) {
	case "sh":
		cmd = exec.CommandContext(cctx, "sh", "-c", p.Command)
	case "bash":
		cmd = exec.CommandContext(cctx, "bash", "-lc", p.Command)
	case "cmd":
		cmd = exec.CommandContext(cctx, "cmd.exe", "/C", p.Command)
	default:
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(cctx, "cmd.exe", "/C", p.Command)
		} else {
			cmd = exec.CommandContext(cctx, "sh", "-c", p.Command)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children of a killed shell may keep the pipes open.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitCode = 1
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() > 0 {
			exitCode = ee.ExitCode()
		}
	}
	return exitCode, stdout.String(), stderr.String()
}
