package worktree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	sshconfig "github.com/kevinburke/ssh_config"
)

// sshSettings is the slice of ~/.ssh/config the fetch path reads.
type sshSettings interface {
	Get(alias, key string) string
	GetAll(alias, key string) []string
}

var defaultSSHSettings sshSettings = sshconfig.DefaultUserSettings

// OpenSSH tries these when ssh_config names no IdentityFile that exists.
var defaultIdentityFiles = []string{"~/.ssh/id_ed25519", "~/.ssh/id_ecdsa", "~/.ssh/id_rsa"}

// sshCredentials decides how a fetch from one ssh remote authenticates:
// the agent when one answers, then each identity file in turn.
type sshCredentials struct {
	host      string
	user      string
	localUser string
	home      string
	settings  sshSettings
}

// credentialsFor returns nil for remotes that are not reached over ssh.
func credentialsFor(endpoint *transport.Endpoint, settings sshSettings) *sshCredentials {
	if endpoint == nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(endpoint.Protocol)) {
	case "ssh", "git+ssh", "ssh+git":
	default:
		return nil
	}
	if settings == nil {
		settings = defaultSSHSettings
	}
	c := &sshCredentials{
		host:      endpoint.Host,
		user:      strings.TrimSpace(endpoint.User),
		localUser: strings.TrimSpace(os.Getenv("USER")),
		settings:  settings,
	}
	if c.user == "" {
		c.user = strings.TrimSpace(settings.Get(c.host, "User"))
	}
	if c.user == "" {
		c.user = "git"
	}
	if home, err := os.UserHomeDir(); err == nil {
		c.home = strings.TrimSpace(home)
	}
	return c
}

// methods lists the auth attempts in order. Each is built lazily so a
// missing agent does not hide the key files.
func (c *sshCredentials) methods() []func() (transport.AuthMethod, error) {
	return []func() (transport.AuthMethod, error){
		func() (transport.AuthMethod, error) { return gitssh.NewSSHAgentAuth(c.user) },
		c.keyFile,
	}
}

func (c *sshCredentials) keyFile() (transport.AuthMethod, error) {
	files := c.identityFiles()
	if len(files) == 0 {
		return nil, fmt.Errorf("no ssh identity file for %s@%s", c.user, c.host)
	}
	var errs []error
	for _, path := range files {
		auth, err := gitssh.NewPublicKeysFromFile(c.user, path, "")
		if err == nil {
			return auth, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
	}
	return nil, errors.Join(errs...)
}

// identityFiles returns the key files that exist, ssh_config entries first.
func (c *sshCredentials) identityFiles() []string {
	var candidates []string
	candidates = append(candidates, c.settings.GetAll(c.host, "IdentityFile")...)
	candidates = append(candidates, defaultIdentityFiles...)
	seen := make(map[string]bool, len(candidates))
	var files []string
	for _, raw := range candidates {
		path := c.expand(raw)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			files = append(files, path)
		}
	}
	return files
}

// expand applies the ssh_config tokens %h %r %u %d and %%, then resolves ~
// and bare names against the home directory. "none" disables the entry.
func (c *sshCredentials) expand(raw string) string {
	path := strings.Trim(strings.TrimSpace(raw), `"'`)
	if path == "" || strings.EqualFold(path, "none") {
		return ""
	}
	path = strings.NewReplacer(
		"%%", "%",
		"%h", c.host,
		"%r", c.user,
		"%u", c.localUser,
		"%d", c.home,
	).Replace(path)

	switch {
	case filepath.IsAbs(path):
		return filepath.Clean(path)
	case c.home == "":
		return ""
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(c.home, path[2:])
	default:
		return filepath.Join(c.home, ".ssh", path)
	}
}

// authRejected reports whether err is the server turning the key down, as
// opposed to a network or repository error worth surfacing as is.
func authRejected(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unable to authenticate", "attempted methods", "permission denied (publickey)"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
