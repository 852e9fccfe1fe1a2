package cli

import (
	"os"
	"path/filepath"
	"testing"
)

const testStackHCL = `
version = "v1"

param "environment" {
  type    = string
  default = "dev"
}

module "network" {
  source = "./modules/network"

  output "vpc_id" {
    type = string
  }
}

module "database" {
  source = "./modules/database"

  parameter "vpc" {
    type     = string
    required = true
  }

  output "host" {
    type = string
  }
}

deploy "net" {
  module = "network"
}

deploy "db" {
  module = "database"
  when   = param.environment == "prod"

  params {
    vpc = module.net.vpc_id
  }
}

outputs {
  vpc = module.net.vpc_id
}
`

// writeTestStack writes a stack.hcl into a fresh temp directory and
// returns the directory.
func writeTestStack(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stack.hcl"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write stack file: %v", err)
	}
	return dir
}

func TestResolveStackFile(t *testing.T) {
	dir := writeTestStack(t, testStackHCL)

	t.Run("directory resolves to stack.hcl", func(t *testing.T) {
		path, err := resolveStackFile(dir)
		if err != nil {
			t.Fatalf("resolveStackFile failed: %v", err)
		}
		if path != filepath.Join(dir, "stack.hcl") {
			t.Errorf("got %q", path)
		}
	})

	t.Run("explicit file passes through", func(t *testing.T) {
		file := filepath.Join(dir, "stack.hcl")
		path, err := resolveStackFile(file)
		if err != nil {
			t.Fatalf("resolveStackFile failed: %v", err)
		}
		if path != file {
			t.Errorf("got %q", path)
		}
	})

	t.Run("missing stack file", func(t *testing.T) {
		if _, err := resolveStackFile(t.TempDir()); err == nil {
			t.Error("expected error for directory without stack.hcl")
		}
	})
}

func TestStackName(t *testing.T) {
	name := stackName("/srv/stacks/webapp/stack.hcl")
	if name != "webapp" {
		t.Errorf("got %q, want %q", name, "webapp")
	}
}

func TestParseParams(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		params, err := parseParams([]string{"environment=prod", "ha=true", "replicas=3"}, "")
		if err != nil {
			t.Fatalf("parseParams failed: %v", err)
		}

		if params["environment"] != "prod" {
			t.Errorf("environment: got %v", params["environment"])
		}
		if params["ha"] != true {
			t.Errorf("ha: got %v, want true", params["ha"])
		}
		// Non-boolean values stay strings; the engine compares numerics
		// across representations.
		if params["replicas"] != "3" {
			t.Errorf("replicas: got %v", params["replicas"])
		}
	})

	t.Run("invalid flag", func(t *testing.T) {
		if _, err := parseParams([]string{"no-equals"}, ""); err == nil {
			t.Error("expected error for malformed --param")
		}
	})

	t.Run("param file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "params.env")
		content := "# comment\nenvironment=staging\nha=false\n"
		if err := os.WriteFile(file, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write param file: %v", err)
		}

		params, err := parseParams(nil, file)
		if err != nil {
			t.Fatalf("parseParams failed: %v", err)
		}
		if params["environment"] != "staging" {
			t.Errorf("environment: got %v", params["environment"])
		}
		if params["ha"] != false {
			t.Errorf("ha: got %v, want false", params["ha"])
		}
	})

	t.Run("flags override file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "params.env")
		if err := os.WriteFile(file, []byte("environment=staging\n"), 0644); err != nil {
			t.Fatalf("failed to write param file: %v", err)
		}

		params, err := parseParams([]string{"environment=prod"}, file)
		if err != nil {
			t.Fatalf("parseParams failed: %v", err)
		}
		if params["environment"] != "prod" {
			t.Errorf("environment: got %v", params["environment"])
		}
	})
}

func TestLoadStack(t *testing.T) {
	dir := writeTestStack(t, testStackHCL)

	st, err := loadStack(dir)
	if err != nil {
		t.Fatalf("loadStack failed: %v", err)
	}

	if len(st.Definitions) != 2 {
		t.Errorf("definitions: got %d, want 2", len(st.Definitions))
	}
	if len(st.Instances) != 2 {
		t.Errorf("instances: got %d, want 2", len(st.Instances))
	}
	if _, ok := st.Outputs["vpc"]; !ok {
		t.Error("expected stack output \"vpc\"")
	}
}
