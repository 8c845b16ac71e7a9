package rego

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	opaast "github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/oh-my-dot/dotbuild/pkg/policy"
	"github.com/oh-my-dot/dotbuild/pkg/types"
)

// Loader discovers and instantiates Rego-backed policies.
type Loader struct {
	files   []string
	missing []string
}

// NewLoader creates a Loader for the provided files and directories.
// Directories are searched recursively for .rego files.
func NewLoader(paths ...string) *Loader {
	unique := make(map[string]struct{}, len(paths))
	var normalized []string
	var missing []string
	add := func(path string) {
		if _, seen := unique[path]; seen {
			return
		}
		unique[path] = struct{}{}
		normalized = append(normalized, path)
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			missing = append(missing, p)
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			missing = append(missing, abs)
			continue
		}
		if !info.IsDir() {
			if strings.HasSuffix(abs, ".rego") {
				add(abs)
			}
			continue
		}
		_ = filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if strings.HasSuffix(d.Name(), ".rego") && !strings.HasSuffix(d.Name(), "_test.rego") {
				add(path)
			}
			return nil
		})
	}
	sort.Strings(normalized)
	sort.Strings(missing)
	return &Loader{files: normalized, missing: missing}
}

// Files returns the discovered module paths.
func (l *Loader) Files() []string {
	return append([]string(nil), l.files...)
}

// MetadataRecord describes a discovered policy.
type MetadataRecord struct {
	Source   string
	Metadata types.PolicyMetadata
}

// DiscoverMetadata loads metadata for the provided policy paths without
// retaining the compiled policies. Missing paths are returned for caller
// awareness.
func DiscoverMetadata(ctx context.Context, paths ...string) ([]MetadataRecord, []string, error) {
	loader := NewLoader(paths...)
	records := make([]MetadataRecord, 0, len(loader.files))
	for _, file := range loader.files {
		p, err := loadFile(ctx, file)
		if err != nil {
			return nil, loader.missing, fmt.Errorf("load rego policy %s: %w", file, err)
		}
		records = append(records, MetadataRecord{Source: p.source, Metadata: p.meta})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Metadata.ID == records[j].Metadata.ID {
			return records[i].Source < records[j].Source
		}
		return records[i].Metadata.ID < records[j].Metadata.ID
	})
	return records, loader.missing, nil
}

// Load compiles every discovered module into a policy.
func (l *Loader) Load(ctx context.Context) ([]policy.Policy, error) {
	if len(l.missing) > 0 {
		return nil, fmt.Errorf("missing policy paths: %s", strings.Join(l.missing, ", "))
	}
	policies := make([]policy.Policy, 0, len(l.files))
	for _, file := range l.files {
		p, err := loadFile(ctx, file)
		if err != nil {
			return nil, fmt.Errorf("load rego policy %s: %w", file, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

type regoPolicy struct {
	source    string
	meta      types.PolicyMetadata
	denyQuery rego.PreparedEvalQuery
}

func (p *regoPolicy) Metadata() types.PolicyMetadata {
	return p.meta
}

func (p *regoPolicy) Evaluate(ctx context.Context, in policy.Input) ([]types.Violation, error) {
	rs, err := p.denyQuery.Eval(ctx, rego.EvalInput(in.Map()))
	if err != nil {
		return nil, fmt.Errorf("evaluate deny: %w", err)
	}
	var violations []types.Violation
	for _, result := range rs {
		for _, exp := range result.Expressions {
			entries, err := extractViolationMaps(exp.Value)
			if err != nil {
				return nil, err
			}
			for _, entry := range entries {
				v, err := p.toViolation(entry)
				if err != nil {
					return nil, err
				}
				violations = append(violations, v)
			}
		}
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Message < violations[j].Message
	})
	return violations, nil
}

func loadFile(ctx context.Context, path string) (*regoPolicy, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}

	module, err := opaast.ParseModule(path, string(source))
	if err != nil {
		return nil, fmt.Errorf("parse module: %w", err)
	}
	if !hasRule(module, "deny") {
		return nil, fmt.Errorf("module %s defines no deny rule", module.Package.Path)
	}

	compiler, err := opaast.CompileModules(map[string]string{path: string(source)})
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}

	pkgRef := module.Package.Path.String()

	denyQuery, err := rego.New(
		rego.Compiler(compiler),
		rego.Query(pkgRef+".deny"),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare deny query: %w", err)
	}

	meta := types.PolicyMetadata{
		ID:              strings.TrimPrefix(pkgRef, "data."),
		DefaultSeverity: types.SeverityError,
		Enabled:         true,
	}
	if hasRule(module, "metadata") {
		metadataQuery, err := rego.New(
			rego.Compiler(compiler),
			rego.Query(pkgRef+".metadata"),
		).PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("prepare metadata query: %w", err)
		}
		if meta, err = evaluateMetadata(ctx, metadataQuery, meta); err != nil {
			return nil, err
		}
	}

	return &regoPolicy{source: path, meta: meta, denyQuery: denyQuery}, nil
}

func hasRule(module *opaast.Module, name string) bool {
	for _, rule := range module.Rules {
		if rule.Head.Name.String() == name {
			return true
		}
		if len(rule.Head.Reference) > 0 && rule.Head.Reference[0].Value.Compare(opaast.Var(name)) == 0 {
			return true
		}
	}
	return false
}

func evaluateMetadata(ctx context.Context, query rego.PreparedEvalQuery, meta types.PolicyMetadata) (types.PolicyMetadata, error) {
	rs, err := query.Eval(ctx)
	if err != nil {
		return meta, fmt.Errorf("evaluate metadata: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return meta, nil
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return meta, fmt.Errorf("metadata must be an object")
	}
	if id, ok := obj["id"].(string); ok && id != "" {
		meta.ID = id
	}
	if desc, ok := obj["description"].(string); ok {
		meta.Description = desc
	}
	if help, ok := obj["help_url"].(string); ok {
		meta.HelpURL = help
	}
	if enabled, ok := obj["enabled"].(bool); ok {
		meta.Enabled = enabled
	}
	if raw, ok := obj["severity"].(string); ok {
		severity, err := parseSeverity(raw)
		if err != nil {
			return meta, fmt.Errorf("metadata.severity: %w", err)
		}
		meta.DefaultSeverity = severity
	}
	return meta, nil
}

func parseSeverity(raw string) (types.Severity, error) {
	severity := types.Severity(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := types.SeverityOrder[severity]; !ok {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return severity, nil
}

func extractViolationMaps(value interface{}) ([]map[string]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			switch entry := item.(type) {
			case map[string]interface{}:
				out = append(out, entry)
			case string:
				out = append(out, map[string]interface{}{"message": entry})
			default:
				return nil, fmt.Errorf("violation must be object or string, got %T", item)
			}
		}
		return out, nil
	case map[string]interface{}:
		return []map[string]interface{}{v}, nil
	default:
		return nil, fmt.Errorf("deny query must return objects or array of objects, got %T", value)
	}
}

func (p *regoPolicy) toViolation(raw map[string]interface{}) (types.Violation, error) {
	v := types.Violation{
		PolicyID: p.meta.ID,
		Message:  "violation",
		Severity: p.meta.DefaultSeverity,
		Source:   p.source,
		HelpURL:  p.meta.HelpURL,
	}
	if msg, ok := raw["message"].(string); ok && msg != "" {
		v.Message = msg
	}
	if id, ok := raw["policy_id"].(string); ok && id != "" {
		v.PolicyID = id
	}
	if raw, ok := raw["severity"].(string); ok && raw != "" {
		severity, err := parseSeverity(raw)
		if err != nil {
			return v, fmt.Errorf("policy %s: %w", p.meta.ID, err)
		}
		v.Severity = severity
	}
	if help, ok := raw["help_url"].(string); ok && help != "" {
		v.HelpURL = help
	}
	return v, nil
}
