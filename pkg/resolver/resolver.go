// Package resolver resolves module template sources to local paths.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Resolver resolves template source references to local directories.
type Resolver interface {
	// Resolve resolves a single template source reference.
	Resolve(ctx context.Context, source string) (ResolvedTemplate, error)

	// ResolveAll resolves several references, keyed by the original source.
	ResolveAll(ctx context.Context, sources []string) (map[string]ResolvedTemplate, error)
}

// ResolvedTemplate is the local form of a template source reference.
type ResolvedTemplate struct {
	// Source is the original reference.
	Source string

	// Type is the reference type (local, git).
	Type ReferenceType

	// Path is the local directory holding the template.
	Path string

	// Version is the resolved git ref, when applicable.
	Version string

	// Metadata carries extra resolution detail such as the repository URL.
	Metadata map[string]string
}

// ReferenceType indicates how a template source is fetched.
type ReferenceType string

const (
	// ReferenceTypeLocal is a filesystem path.
	ReferenceTypeLocal ReferenceType = "local"

	// ReferenceTypeGit is a git repository reference.
	ReferenceTypeGit ReferenceType = "git"
)

// DetectReferenceType determines how a template source should be fetched.
// Sources prefixed "git::" are git references; everything else is a
// filesystem path.
func DetectReferenceType(source string) ReferenceType {
	if strings.HasPrefix(source, "git::") {
		return ReferenceTypeGit
	}
	return ReferenceTypeLocal
}

// Options configures the resolver.
type Options struct {
	// CacheDir is where cloned repositories are kept. Defaults to
	// ~/.stackctl/cache/templates.
	CacheDir string

	// BaseDir anchors relative local paths. Defaults to the stack file's
	// directory when set by the caller, otherwise the working directory.
	BaseDir string
}

type resolver struct {
	cacheDir string
	baseDir  string
}

// NewResolver creates a template source resolver.
func NewResolver(opts Options) Resolver {
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		homeDir, _ := os.UserHomeDir()
		cacheDir = filepath.Join(homeDir, ".stackctl", "cache", "templates")
	}

	return &resolver{
		cacheDir: cacheDir,
		baseDir:  opts.BaseDir,
	}
}

func (r *resolver) Resolve(ctx context.Context, source string) (ResolvedTemplate, error) {
	switch DetectReferenceType(source) {
	case ReferenceTypeGit:
		return r.resolveGit(ctx, source)
	default:
		return r.resolveLocal(source)
	}
}

func (r *resolver) ResolveAll(ctx context.Context, sources []string) (map[string]ResolvedTemplate, error) {
	results := make(map[string]ResolvedTemplate, len(sources))

	for _, source := range sources {
		if _, ok := results[source]; ok {
			continue
		}
		resolved, err := r.Resolve(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", source, err)
		}
		results[source] = resolved
	}

	return results, nil
}

func (r *resolver) resolveLocal(source string) (ResolvedTemplate, error) {
	path := source
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return ResolvedTemplate{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return ResolvedTemplate{}, fmt.Errorf("template path not found: %w", err)
	}
	if !info.IsDir() {
		return ResolvedTemplate{}, fmt.Errorf("template path %s is not a directory", absPath)
	}

	return ResolvedTemplate{
		Source:   source,
		Type:     ReferenceTypeLocal,
		Path:     absPath,
		Metadata: map[string]string{},
	}, nil
}

func (r *resolver) resolveGit(ctx context.Context, source string) (ResolvedTemplate, error) {
	// Format: git::https://github.com/org/repo.git//path?ref=branch
	parts := strings.SplitN(source, "::", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ResolvedTemplate{}, fmt.Errorf("invalid git reference format: %s", source)
	}

	gitURL := parts[1]
	subPath := ""
	gitRef := "main"

	if idx := strings.Index(gitURL, "//"); idx != -1 {
		subPath = gitURL[idx+2:]
		gitURL = gitURL[:idx]

		if idx := strings.Index(subPath, "?"); idx != -1 {
			query := subPath[idx+1:]
			subPath = subPath[:idx]

			for _, param := range strings.Split(query, "&") {
				kv := strings.SplitN(param, "=", 2)
				if len(kv) == 2 && kv[0] == "ref" {
					gitRef = kv[1]
				}
			}
		}
	}

	repoDir := filepath.Join(r.cacheDir, "git", cacheKey(gitURL), gitRef)

	if _, err := os.Stat(repoDir); os.IsNotExist(err) {
		if err := r.gitClone(ctx, gitURL, gitRef, repoDir); err != nil {
			return ResolvedTemplate{}, fmt.Errorf("failed to clone repository: %w", err)
		}
	}

	templateDir := repoDir
	if subPath != "" {
		templateDir = filepath.Join(repoDir, subPath)
	}
	if info, err := os.Stat(templateDir); err != nil || !info.IsDir() {
		return ResolvedTemplate{}, fmt.Errorf("template path %s not found in repository %s", subPath, gitURL)
	}

	return ResolvedTemplate{
		Source:  source,
		Type:    ReferenceTypeGit,
		Path:    templateDir,
		Version: gitRef,
		Metadata: map[string]string{
			"repository": gitURL,
			"subpath":    subPath,
		},
	}, nil
}

func (r *resolver) gitClone(ctx context.Context, url, ref, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	cloneOpts := &git.CloneOptions{
		URL:           url,
		Depth:         1,
		SingleBranch:  true,
		ReferenceName: plumbing.NewBranchReferenceName(ref),
	}

	// Try the ref as a branch first, then as a tag.
	_, err := git.PlainCloneContext(ctx, dest, false, cloneOpts)
	if err != nil {
		cloneOpts.ReferenceName = plumbing.NewTagReferenceName(ref)
		_, err = git.PlainCloneContext(ctx, dest, false, cloneOpts)
		if err != nil {
			os.RemoveAll(dest)
			return fmt.Errorf("git clone failed: %w", err)
		}
	}

	return nil
}

func cacheKey(gitURL string) string {
	key := strings.ReplaceAll(gitURL, "/", "_")
	key = strings.ReplaceAll(key, ":", "_")
	key = strings.ReplaceAll(key, ".", "_")
	return key
}
