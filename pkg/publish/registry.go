package publish

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// RegistryKind classifies a resolved package registry host
type RegistryKind string

const (
	RegistryPublic         RegistryKind = "public"
	RegistryGithubPackages RegistryKind = "github-packages"
	RegistryCodeArtifact   RegistryKind = "codeartifact"
)

// ResolvedRegistry is the outcome of resolving a registry override:
// which provider it belongs to and, for CodeArtifact, the domain and
// repository parsed out of the URL
type ResolvedRegistry struct {
	Kind                   RegistryKind
	Host                   string
	CodeArtifactDomain     string
	CodeArtifactRepository string
}

// CodeArtifact hosts look like <domain>-<account>.d.codeartifact.<region>.amazonaws.com
var codeArtifactHostPattern = regexp.MustCompile(`^(.+)-(\d+)\.d\.codeartifact\.[a-z0-9-]+\.amazonaws\.com$`)

// ResolveRegistry classifies a registry override. An empty registry means
// the target's public default.
func ResolveRegistry(registry string) (*ResolvedRegistry, error) {
	if registry == "" {
		return &ResolvedRegistry{Kind: RegistryPublic}, nil
	}

	raw := registry
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid registry %q: %w", registry, err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("invalid registry %q: no host", registry)
	}

	if strings.HasSuffix(host, ".pkg.github.com") {
		return &ResolvedRegistry{Kind: RegistryGithubPackages, Host: host}, nil
	}

	if m := codeArtifactHostPattern.FindStringSubmatch(host); m != nil {
		repo := strings.Trim(u.Path, "/")
		if i := strings.Index(repo, "/"); i >= 0 {
			// paths look like npm/<repository>/ or pypi/<repository>/
			repo = repo[i+1:]
			repo = strings.SplitN(repo, "/", 2)[0]
		}
		if repo == "" {
			return nil, fmt.Errorf("invalid CodeArtifact registry %q: repository missing from path", registry)
		}
		return &ResolvedRegistry{
			Kind:                   RegistryCodeArtifact,
			Host:                   host,
			CodeArtifactDomain:     m[1],
			CodeArtifactRepository: repo,
		}, nil
	}

	return &ResolvedRegistry{Kind: RegistryPublic, Host: host}, nil
}
