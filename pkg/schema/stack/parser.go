package stack

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/architect-io/stackctl/pkg/engine/expr"
)

// Parser parses stack schema files.
type Parser struct {
	parser *hclparse.Parser
}

// NewParser creates a new parser.
func NewParser() *Parser {
	return &Parser{parser: hclparse.NewParser()}
}

// Parse parses a stack file from the given path.
func (p *Parser) Parse(path string) (*Schema, hcl.Diagnostics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseBytes(data, path)
}

// ParseBytes parses a stack file from raw bytes.
func (p *Parser) ParseBytes(data []byte, filename string) (*Schema, hcl.Diagnostics, error) {
	file, diags := p.parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diags, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}

	schema := &Schema{}

	bodySchema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "version"},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "param", LabelNames: []string{"name"}},
			{Type: "module", LabelNames: []string{"name"}},
			{Type: "deploy", LabelNames: []string{"name"}},
			{Type: "outputs"},
		},
	}

	content, moreDiags := file.Body.Content(bodySchema)
	diags = append(diags, moreDiags...)

	if attr, ok := content.Attributes["version"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			schema.Version = val.AsString()
		}
	}

	for _, block := range content.Blocks.OfType("param") {
		param, blockDiags := p.parseParam(block)
		diags = append(diags, blockDiags...)
		if param != nil {
			schema.Params = append(schema.Params, *param)
		}
	}

	for _, block := range content.Blocks.OfType("module") {
		mod, blockDiags := p.parseModule(block)
		diags = append(diags, blockDiags...)
		if mod != nil {
			schema.Modules = append(schema.Modules, *mod)
		}
	}

	for _, block := range content.Blocks.OfType("deploy") {
		dep, blockDiags := p.parseDeploy(block)
		diags = append(diags, blockDiags...)
		if dep != nil {
			schema.Deploys = append(schema.Deploys, *dep)
		}
	}

	for _, block := range content.Blocks.OfType("outputs") {
		outs, blockDiags := p.parseOutputs(block)
		diags = append(diags, blockDiags...)
		schema.Outputs = outs
		break // only one outputs block allowed
	}

	return schema, diags, nil
}

func (p *Parser) parseParam(block *hcl.Block) (*ParamBlock, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	paramSchema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "type"},
			{Name: "description"},
			{Name: "default"},
			{Name: "required"},
		},
	}

	content, moreDiags := block.Body.Content(paramSchema)
	diags = append(diags, moreDiags...)

	param := &ParamBlock{
		Name: block.Labels[0],
	}

	if attr, ok := content.Attributes["type"]; ok {
		param.Type = hcl.ExprAsKeyword(attr.Expr)
	}

	if attr, ok := content.Attributes["description"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			param.Description = val.AsString()
		}
	}

	if attr, ok := content.Attributes["default"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			param.Default = fromCtyValue(val)
			param.HasDefault = true
		}
	}

	if attr, ok := content.Attributes["required"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			param.Required = val.True()
		}
	}

	return param, diags
}

func (p *Parser) parseModule(block *hcl.Block) (*ModuleBlock, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	moduleSchema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "source", Required: true},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "parameter", LabelNames: []string{"name"}},
			{Type: "output", LabelNames: []string{"name"}},
		},
	}

	content, moreDiags := block.Body.Content(moduleSchema)
	diags = append(diags, moreDiags...)

	mod := &ModuleBlock{
		Name: block.Labels[0],
	}

	if attr, ok := content.Attributes["source"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			mod.Source = val.AsString()
		}
	}

	for _, paramBlock := range content.Blocks.OfType("parameter") {
		parameter, paramDiags := p.parseParameter(paramBlock)
		diags = append(diags, paramDiags...)
		if parameter != nil {
			mod.Parameters = append(mod.Parameters, *parameter)
		}
	}

	for _, outBlock := range content.Blocks.OfType("output") {
		out, outDiags := p.parseOutput(outBlock)
		diags = append(diags, outDiags...)
		if out != nil {
			mod.Outputs = append(mod.Outputs, *out)
		}
	}

	return mod, diags
}

func (p *Parser) parseParameter(block *hcl.Block) (*ParameterBlock, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	paramSchema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "type"},
			{Name: "description"},
			{Name: "required"},
			{Name: "default"},
		},
	}

	content, moreDiags := block.Body.Content(paramSchema)
	diags = append(diags, moreDiags...)

	parameter := &ParameterBlock{
		Name: block.Labels[0],
	}

	if attr, ok := content.Attributes["type"]; ok {
		parameter.Type = hcl.ExprAsKeyword(attr.Expr)
	}

	if attr, ok := content.Attributes["description"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			parameter.Description = val.AsString()
		}
	}

	if attr, ok := content.Attributes["required"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			parameter.Required = val.True()
		}
	}

	if attr, ok := content.Attributes["default"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			parameter.Default = fromCtyValue(val)
		}
	}

	return parameter, diags
}

func (p *Parser) parseOutput(block *hcl.Block) (*OutputBlock, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	outSchema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "type"},
			{Name: "description"},
		},
	}

	content, moreDiags := block.Body.Content(outSchema)
	diags = append(diags, moreDiags...)

	out := &OutputBlock{
		Name: block.Labels[0],
	}

	if attr, ok := content.Attributes["type"]; ok {
		out.Type = hcl.ExprAsKeyword(attr.Expr)
	}

	if attr, ok := content.Attributes["description"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			out.Description = val.AsString()
		}
	}

	return out, diags
}

func (p *Parser) parseDeploy(block *hcl.Block) (*DeployBlock, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	deploySchema := &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "module", Required: true},
			{Name: "when"},
			{Name: "params"},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "params"},
		},
	}

	content, moreDiags := block.Body.Content(deploySchema)
	diags = append(diags, moreDiags...)

	dep := &DeployBlock{
		Name: block.Labels[0],
	}

	if attr, ok := content.Attributes["module"]; ok {
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() {
			dep.Module = val.AsString()
		}
	}

	// when and params may reference other deployments' outputs, so they are
	// converted to engine expressions rather than evaluated here.
	if attr, ok := content.Attributes["when"]; ok {
		when, err := convertExpr(attr.Expr)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid when expression",
				Detail:   err.Error(),
				Subject:  attr.Expr.Range().Ptr(),
			})
		} else {
			dep.When = when
		}
	}

	// Params can be either an attribute (params = {...}) or a block
	// (params {...}).
	if attr, ok := content.Attributes["params"]; ok {
		params, err := convertObjectItems(attr.Expr)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid params object",
				Detail:   err.Error(),
				Subject:  attr.Expr.Range().Ptr(),
			})
		} else {
			dep.Params = params
		}
	} else if paramsBlocks := content.Blocks.OfType("params"); len(paramsBlocks) > 0 {
		attrs, attrDiags := paramsBlocks[0].Body.JustAttributes()
		diags = append(diags, attrDiags...)

		params := make(map[string]expr.Expr, len(attrs))
		for name, attr := range attrs {
			converted, err := convertExpr(attr.Expr)
			if err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  fmt.Sprintf("Invalid param expression %q", name),
					Detail:   err.Error(),
					Subject:  attr.Expr.Range().Ptr(),
				})
				continue
			}
			params[name] = converted
		}
		dep.Params = params
	}

	return dep, diags
}

func (p *Parser) parseOutputs(block *hcl.Block) (map[string]expr.Expr, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	attrs, attrDiags := block.Body.JustAttributes()
	diags = append(diags, attrDiags...)

	outs := make(map[string]expr.Expr, len(attrs))
	for name, attr := range attrs {
		converted, err := convertExpr(attr.Expr)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  fmt.Sprintf("Invalid output expression %q", name),
				Detail:   err.Error(),
				Subject:  attr.Expr.Range().Ptr(),
			})
			continue
		}
		outs[name] = converted
	}

	return outs, diags
}
