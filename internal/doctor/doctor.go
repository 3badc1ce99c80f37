// Package doctor checks that the local environment can run sync workflows:
// required tools on PATH, a reachable docker daemon, and valid configuration.
package doctor

import (
	"context"
	"fmt"

	"github.com/nimbuslabs/nimbus/internal/config"
	"github.com/nimbuslabs/nimbus/internal/exec"
)

// Check is one verifiable requirement.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result is the outcome of one check.
type Result struct {
	Name string
	Err  error
}

// OK reports whether the check passed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Doctor runs environment checks. The lookup and runner hooks are injectable
// for tests.
type Doctor struct {
	lookPath func(string) (string, error)
	runner   exec.Runner
	global   *config.Global
	project  *config.Config
}

// New creates a Doctor with the real tool lookup and command runner.
func New(global *config.Global, project *config.Config) *Doctor {
	return &Doctor{
		lookPath: exec.LookPath,
		runner:   exec.NewLocalRunner(),
		global:   global,
		project:  project,
	}
}

// SetLookPath overrides tool lookup, for tests.
func (d *Doctor) SetLookPath(fn func(string) (string, error)) {
	d.lookPath = fn
}

// SetRunner overrides the command runner, for tests.
func (d *Doctor) SetRunner(r exec.Runner) {
	d.runner = r
}

// Checks returns the checks in the order they are run. The project config
// checks only appear when a project was found.
func (d *Doctor) Checks() []Check {
	checks := []Check{
		{Name: "docker on PATH", Run: d.checkTool("docker")},
		{Name: "docker daemon running", Run: d.checkDaemon},
		{Name: "docker compose available", Run: d.checkCompose},
		{Name: "access token configured", Run: d.checkToken},
	}
	if d.project != nil {
		checks = append(checks, Check{Name: "project services configured", Run: d.checkServices})
	}
	return checks
}

// RunAll executes every check and collects results. Checks are independent,
// so a failure doesn't stop the rest.
func (d *Doctor) RunAll(ctx context.Context) []Result {
	var results []Result
	for _, c := range d.Checks() {
		results = append(results, Result{Name: c.Name, Err: c.Run(ctx)})
	}
	return results
}

func (d *Doctor) checkTool(name string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := d.lookPath(name)
		return err
	}
}

func (d *Doctor) checkDaemon(ctx context.Context) error {
	result, err := d.runner.Run(ctx, []string{"docker", "info"}, nil)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("docker daemon not reachable: %s", result.Output())
	}
	return nil
}

func (d *Doctor) checkCompose(ctx context.Context) error {
	result, err := d.runner.Run(ctx, []string{"docker", "compose", "version"}, nil)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("docker compose not available: %s", result.Output())
	}
	return nil
}

func (d *Doctor) checkToken(ctx context.Context) error {
	if d.global == nil || d.global.Token == "" {
		return fmt.Errorf("no access token, run 'nimbus login'")
	}
	return nil
}

func (d *Doctor) checkServices(ctx context.Context) error {
	if len(d.project.Services) == 0 {
		return fmt.Errorf("no services defined in %s", config.ConfigFileName)
	}
	for prefix, svc := range d.project.Services {
		if svc.Type == "" {
			return fmt.Errorf("service %q has no type", prefix)
		}
	}
	return nil
}
