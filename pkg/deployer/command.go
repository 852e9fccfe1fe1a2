package deployer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/architect-io/stackctl/pkg/errors"
)

// CommandOptions configures the command deployer.
type CommandOptions struct {
	// Binary is the program invoked for each deployment. Defaults to the
	// STACKCTL_DEPLOY_COMMAND environment variable, then "stackctl-deploy".
	Binary string

	// Args are extra arguments passed before the module source path.
	Args []string

	// Env contains additional environment variables for the process.
	Env map[string]string
}

// CommandDeployer deploys modules by invoking an external program. The
// program receives the module source path as its final argument and the
// parameter values as a JSON object on stdin. It must print the resulting
// outputs as a JSON object on stdout.
type CommandDeployer struct {
	binary string
	args   []string
	env    map[string]string
}

// NewCommandDeployer creates a command deployer.
func NewCommandDeployer(opts CommandOptions) *CommandDeployer {
	binary := opts.Binary
	if binary == "" {
		binary = os.Getenv("STACKCTL_DEPLOY_COMMAND")
	}
	if binary == "" {
		binary = "stackctl-deploy"
	}
	return &CommandDeployer{
		binary: binary,
		args:   opts.Args,
		env:    opts.Env,
	}
}

func (d *CommandDeployer) Name() string {
	return "command"
}

func (d *CommandDeployer) Deploy(ctx context.Context, req Request) (map[string]interface{}, error) {
	input, err := json.Marshal(req.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params for %s: %w", req.Name, err)
	}

	args := append(append([]string{}, d.args...), req.Source)
	cmd := exec.CommandContext(ctx, d.binary, args...)
	cmd.Stdin = bytes.NewReader(input)

	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "STACKCTL_INSTANCE="+req.Name)
	for k, v := range d.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if req.Stderr != nil {
		cmd.Stderr = req.Stderr
	}

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDeployer,
			fmt.Sprintf("deploy command %q failed for instance %q", d.binary, req.Name), err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return map[string]interface{}{}, nil
	}

	var outputs map[string]interface{}
	if err := json.Unmarshal([]byte(out), &outputs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDeployer,
			fmt.Sprintf("deploy command for instance %q produced invalid output JSON", req.Name), err)
	}

	return outputs, nil
}
