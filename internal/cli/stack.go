package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/architect-io/stackctl/pkg/schema/stack"
	"golang.org/x/term"
)

// defaultParallelism is the default number of concurrent deployments.
const defaultParallelism = 10

// defaultStackFile is looked for when a command is given a directory.
const defaultStackFile = "stack.hcl"

// resolveStackFile turns a command argument into the path of a stack file.
// Directories are searched for stack.hcl; an empty argument means the
// working directory.
func resolveStackFile(arg string) (string, error) {
	path := arg
	if path == "" {
		path = "."
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stack path not found: %w", err)
	}

	if info.IsDir() {
		path = filepath.Join(path, defaultStackFile)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("no %s found in %s", defaultStackFile, arg)
		}
	}

	return path, nil
}

// loadStack loads and transforms the stack file named by arg.
func loadStack(arg string) (*stack.Stack, error) {
	path, err := resolveStackFile(arg)
	if err != nil {
		return nil, err
	}
	return stack.Load(path)
}

// stackName derives the stack's record store name from its file path:
// the base name of the containing directory.
func stackName(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	name := filepath.Base(dir)
	if name == "." || name == string(filepath.Separator) {
		abs, err := filepath.Abs(dir)
		if err == nil {
			name = filepath.Base(abs)
		}
	}
	return name
}

// parseParams parses repeated --param key=value flags and an optional
// KEY=value params file into a parameter override map.
func parseParams(flags []string, paramFile string) (map[string]interface{}, error) {
	params := make(map[string]interface{})

	if paramFile != "" {
		data, err := os.ReadFile(paramFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read param file: %w", err)
		}
		parseParamLines(string(data), params)
	}

	for _, p := range flags {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", p)
		}
		params[parts[0]] = coerceParam(parts[1])
	}

	return params, nil
}

func parseParamLines(data string, params map[string]interface{}) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
			params[key] = coerceParam(value)
		}
	}
}

// coerceParam maps the literals true and false onto booleans so boolean
// stack parameters can be set from the command line.
func coerceParam(value string) interface{} {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}

// isInteractive returns true if the CLI is attached to a terminal and not
// running in a CI environment.
func isInteractive() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}

	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"TRAVIS",
		"JENKINS_URL",
		"BUILDKITE",
		"DRONE",
	}

	for _, env := range ciEnvVars {
		if os.Getenv(env) != "" {
			return false
		}
	}

	return true
}
