package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"velicia/llm"
)

// Config holds all configuration
type Config struct {
	Variables    []Variable
	Models       []Model
	Credentials  Credentials
	Endpoints    Endpoints
	Server       Server
	Logging      Logging
	DefaultModel string

	// ResolvedVars holds the resolved variable values for runtime use
	ResolvedVars map[string]cty.Value
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{ResolvedVars: map[string]cty.Value{}}
	cfg.applyDefaults()
	return cfg
}

// Load reads a file or every *.hcl file in a directory. A path that does not
// exist yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadAndValidate loads the config and validates all components
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all config components are valid
func (c *Config) Validate() error {
	for _, v := range c.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variable '%s': %w", v.Name, err)
		}
	}

	seen := make(map[string]bool)
	for _, m := range c.Models {
		if seen[m.Name] {
			return fmt.Errorf("model '%s': declared more than once", m.Name)
		}
		seen[m.Name] = true
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model '%s': %w", m.Name, err)
		}
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if _, ok := c.Catalog().Lookup(c.DefaultModel); !ok {
		return fmt.Errorf("default_model '%s' is not a known model", c.DefaultModel)
	}
	return nil
}

// Catalog merges the configured models over the built-in ones.
func (c *Config) Catalog() *llm.Catalog {
	descs := llm.DefaultDescriptors()
	for _, m := range c.Models {
		descs = append(descs, m.Descriptor())
	}
	return llm.NewCatalog(c.DefaultModel, descs...)
}

func LoadFile(filename string) (*Config, error) {
	return loadFromFiles([]string{filename})
}

func LoadDir(dir string) (*Config, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, err
	}
	return loadFromFiles(files)
}

// parsedBlocks holds all blocks extracted from a file in one pass
type parsedBlocks struct {
	Variables    []*hcl.Block
	Models       []*hcl.Block
	Credentials  []*hcl.Block
	Endpoints    []*hcl.Block
	Server       []*hcl.Block
	Logging      []*hcl.Block
	DefaultModel *hcl.Attribute
}

var fileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "default_model"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "model", LabelNames: []string{"name"}},
		{Type: "credentials"},
		{Type: "endpoints"},
		{Type: "server"},
		{Type: "logging"},
	},
}

// loadFromFiles implements staged loading: variables first, then everything
// that may reference them.
func loadFromFiles(files []string) (*Config, error) {
	parser := hclparse.NewParser()
	var allParsedBlocks []parsedBlocks

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", file, diags)
		}

		content, diags := hclFile.Body.Content(fileSchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("content %s: %w", file, diags)
		}

		var pb parsedBlocks
		pb.DefaultModel = content.Attributes["default_model"]
		for _, block := range content.Blocks {
			switch block.Type {
			case "variable":
				pb.Variables = append(pb.Variables, block)
			case "model":
				pb.Models = append(pb.Models, block)
			case "credentials":
				pb.Credentials = append(pb.Credentials, block)
			case "endpoints":
				pb.Endpoints = append(pb.Endpoints, block)
			case "server":
				pb.Server = append(pb.Server, block)
			case "logging":
				pb.Logging = append(pb.Logging, block)
			}
		}
		allParsedBlocks = append(allParsedBlocks, pb)
	}

	cfg := &Config{}

	// Stage 1: Load variables (no context needed)
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Variables {
			var v Variable
			v.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, nil, &v)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode variable %s: %w", v.Name, diags)
			}
			cfg.Variables = append(cfg.Variables, v)
		}
	}

	varsCtx, resolvedVars := buildVarsContext(cfg.Variables)
	cfg.ResolvedVars = resolvedVars

	// Stage 2: everything else, evaluated with vars
	var credentialBlocks, endpointBlocks, serverBlocks, loggingBlocks []*hcl.Block
	var defaultModel *hcl.Attribute
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Models {
			var m Model
			m.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, varsCtx, &m)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode model %s: %w", m.Name, diags)
			}
			cfg.Models = append(cfg.Models, m)
		}
		credentialBlocks = append(credentialBlocks, pb.Credentials...)
		endpointBlocks = append(endpointBlocks, pb.Endpoints...)
		serverBlocks = append(serverBlocks, pb.Server...)
		loggingBlocks = append(loggingBlocks, pb.Logging...)
		if pb.DefaultModel != nil {
			if defaultModel != nil {
				return nil, fmt.Errorf("default_model is set more than once (%s)", pb.DefaultModel.Range)
			}
			defaultModel = pb.DefaultModel
		}
	}

	if err := decodeSingle("credentials", credentialBlocks, varsCtx, &cfg.Credentials); err != nil {
		return nil, err
	}
	if err := decodeSingle("endpoints", endpointBlocks, varsCtx, &cfg.Endpoints); err != nil {
		return nil, err
	}
	if err := decodeSingle("server", serverBlocks, varsCtx, &cfg.Server); err != nil {
		return nil, err
	}
	if err := decodeSingle("logging", loggingBlocks, varsCtx, &cfg.Logging); err != nil {
		return nil, err
	}

	if defaultModel != nil {
		diags := gohcl.DecodeExpression(defaultModel.Expr, varsCtx, &cfg.DefaultModel)
		if diags.HasErrors() {
			return nil, fmt.Errorf("decode default_model: %w", diags)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// decodeSingle decodes a block type that may appear at most once across all
// files.
func decodeSingle(blockType string, blocks []*hcl.Block, ctx *hcl.EvalContext, target any) error {
	switch len(blocks) {
	case 0:
		return nil
	case 1:
		if diags := gohcl.DecodeBody(blocks[0].Body, ctx, target); diags.HasErrors() {
			return fmt.Errorf("decode %s: %w", blockType, diags)
		}
		return nil
	default:
		return fmt.Errorf("%s block is declared more than once (%s)", blockType, blocks[1].DefRange)
	}
}

func (c *Config) applyDefaults() {
	c.Server.Defaults()
	c.Logging.Defaults()
	c.Endpoints.Defaults()
	if c.DefaultModel == "" {
		c.DefaultModel = llm.DefaultModelID
	}
	for i := range c.Models {
		c.Models[i].Defaults()
	}
}

// buildVarsContext resolves each variable from vars.txt, the environment, or
// its default, and exposes them as the "vars" object.
func buildVarsContext(vars []Variable) (*hcl.EvalContext, map[string]cty.Value) {
	varsMap := make(map[string]cty.Value)
	fileVars, _ := LoadVarsFromFile()
	for _, v := range vars {
		varsMap[v.Name] = cty.StringVal(resolveWith(fileVars, &v))
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vars": cty.ObjectVal(varsMap),
		},
	}, varsMap
}
