// Package git is the source provider that fetches deployable source
// by cloning a git repository. Each fetch produces a fresh shallow
// clone in a disposable workspace.
package git

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/berth-deploy/berth/pkg/provider"
)

const Name = "git"

// Env vars that are allowed to be inherited from the OS; git follows
// the curl conventions for proxies, so HTTP_PROXY is intentionally
// missing.
var allowedEnvVars = []string{
	"http_proxy", "https_proxy", "no_proxy", "HTTPS_PROXY", "NO_PROXY", "GIT_PROXY_COMMAND",
	"HOME", "PATH",
}

type Provider struct {
	Logger log.Logger
}

func New(logger log.Logger) *Provider {
	return &Provider{Logger: logger}
}

// ValidateConfig reports every violation at once.
func (p *Provider) ValidateConfig(cfg provider.Config) provider.ValidationResult {
	var violations []string
	url, _ := cfg["url"].(string)
	if url == "" {
		violations = append(violations, "url is required")
	}
	if depth, ok := cfg["depth"]; ok {
		if n, ok := depth.(int); !ok || n < 1 {
			violations = append(violations, "depth must be a positive integer")
		}
	}
	return provider.ValidationResult{Valid: len(violations) == 0, Errors: violations}
}

// ShouldSkipDeployment: a trigger naming the commit that is already
// deployed would be a no-op, but the provider has no record of what
// is deployed; the daemon's store does. So the git provider never
// skips of its own accord.
func (p *Provider) ShouldSkipDeployment(context.Context, provider.Config, provider.Trigger) (provider.SkipResult, error) {
	return provider.SkipResult{}, nil
}

// FetchSource clones the repository at the trigger's branch or
// commit into a temporary directory. The returned source's Cleanup
// removes the whole clone.
func (p *Provider) FetchSource(ctx context.Context, cfg provider.Config, trigger provider.Trigger) (*provider.Source, error) {
	url, _ := cfg["url"].(string)
	if url == "" {
		return nil, errors.New("git provider: url is required")
	}

	dir, err := ioutil.TempDir(os.TempDir(), "berth-src-")
	if err != nil {
		return nil, errors.Wrap(err, "creating source workspace")
	}
	cleanup := func() error { return os.RemoveAll(dir) }

	args := []string{"clone", "--depth", "1"}
	if trigger.Branch != "" {
		args = append(args, "--branch", trigger.Branch)
	}
	args = append(args, url, dir)
	if err := p.git(ctx, "", args...); err != nil {
		os.RemoveAll(dir)
		return nil, errors.Wrapf(err, "cloning %s", safeURL(url))
	}

	// A shallow clone only has the branch tip; a trigger pinned to an
	// older commit needs that object fetched explicitly.
	revision := trigger.Commit
	if revision != "" {
		if err := p.git(ctx, dir, "checkout", revision); err != nil {
			if ferr := p.git(ctx, dir, "fetch", "--depth", "1", "origin", revision); ferr != nil {
				os.RemoveAll(dir)
				return nil, errors.Wrapf(err, "checking out %s", revision)
			}
			if cerr := p.git(ctx, dir, "checkout", revision); cerr != nil {
				os.RemoveAll(dir)
				return nil, errors.Wrapf(cerr, "checking out %s", revision)
			}
		}
	} else {
		revision, err = p.headRevision(ctx, dir)
		if err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}

	meta := map[string]string{
		"repository": trigger.Repository,
		"revision":   revision,
	}
	return provider.NewSource(revision, dir, meta, cleanup), nil
}

func (p *Provider) headRevision(ctx context.Context, dir string) (string, error) {
	out := &bytes.Buffer{}
	c := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	c.Dir = dir
	c.Env = env()
	c.Stdout = out
	if err := c.Run(); err != nil {
		return "", errors.Wrap(err, "resolving HEAD")
	}
	return strings.TrimSpace(out.String()), nil
}

func (p *Provider) git(ctx context.Context, dir string, args ...string) error {
	c := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		c.Dir = dir
	}
	c.Env = env()
	stderr := &bytes.Buffer{}
	c.Stderr = stderr
	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("git %s: %s", args[0], msg)
	}
	return nil
}

func env() []string {
	var out []string
	for _, k := range allowedEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			out = append(out, k+"="+v)
		}
	}
	return out
}

// safeURL redacts any userinfo from a URL destined for logs or
// error messages.
func safeURL(url string) string {
	if at := strings.Index(url, "@"); at >= 0 {
		if scheme := strings.Index(url, "://"); scheme >= 0 && scheme < at {
			return url[:scheme+3] + "<redacted>" + url[at:]
		}
	}
	return url
}

var _ provider.Provider = &Provider{}
