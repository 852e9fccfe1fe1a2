package deployer

import (
	"context"
)

// StaticDeployer returns pre-configured outputs without provisioning
// anything. It backs dry runs and tests: every instance "succeeds"
// immediately with the outputs configured for its name, or an empty map.
type StaticDeployer struct {
	outputs map[string]map[string]interface{}
}

// NewStaticDeployer creates a static deployer. The outputs map is keyed by
// deployment name; a nil map means every instance yields no outputs.
func NewStaticDeployer(outputs map[string]map[string]interface{}) *StaticDeployer {
	return &StaticDeployer{outputs: outputs}
}

func (d *StaticDeployer) Name() string {
	return "static"
}

func (d *StaticDeployer) Deploy(ctx context.Context, req Request) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if out, ok := d.outputs[req.Name]; ok {
		copied := make(map[string]interface{}, len(out))
		for k, v := range out {
			copied[k] = v
		}
		return copied, nil
	}
	return map[string]interface{}{}, nil
}
