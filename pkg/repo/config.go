package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config stores repository-local settings, persisted as .grit/config.toml.
type Config struct {
	User   UserConfig              `toml:"user,omitempty"`
	Status StatusConfig            `toml:"status,omitempty"`
	Merge  MergeConfig             `toml:"merge,omitempty"`
	Remote map[string]RemoteConfig `toml:"remote,omitempty"`
	Branch map[string]BranchConfig `toml:"branch,omitempty"`
}

type UserConfig struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

type StatusConfig struct {
	// RenameThreshold is the minimum similarity (0-100) for a rename.
	// Zero means "use the default".
	RenameThreshold int `toml:"rename_threshold,omitempty"`
}

type MergeConfig struct {
	// FF is "true", "false" (always create a merge commit) or "only".
	FF string `toml:"ff,omitempty"`
}

type RemoteConfig struct {
	URL string `toml:"url"`
}

// BranchConfig records the upstream a local branch tracks.
type BranchConfig struct {
	Remote string `toml:"remote,omitempty"`
	Merge  string `toml:"merge,omitempty"`
}

func (r *Repo) configPath() string {
	return r.gritPath("config.toml")
}

// ReadConfig reads .grit/config.toml. Missing config returns an empty config.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fsError("read config", r.configPath(), err)
		}
	} else if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: decode: %w", err)
	}
	if cfg.Remote == nil {
		cfg.Remote = make(map[string]RemoteConfig)
	}
	if cfg.Branch == nil {
		cfg.Branch = make(map[string]BranchConfig)
	}
	return cfg, nil
}

// WriteConfig atomically writes .grit/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(r.configPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// UpdateConfig reads the config, applies fn and writes the result back.
func (r *Repo) UpdateConfig(fn func(*Config) error) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return r.WriteConfig(cfg)
}

// SetRemote stores/updates a named remote URL in repository config.
func (r *Repo) SetRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set remote: remote name is required")
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return fmt.Errorf("set remote: remote URL is required")
	}
	return r.UpdateConfig(func(cfg *Config) error {
		cfg.Remote[name] = RemoteConfig{URL: remoteURL}
		return nil
	})
}

// RemoteURL returns the configured URL for the given remote name.
func (r *Repo) RemoteURL(name string) (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	remote, ok := cfg.Remote[strings.TrimSpace(name)]
	if !ok || strings.TrimSpace(remote.URL) == "" {
		return "", fmt.Errorf("remote %q: %w", name, ErrNotFound)
	}
	return remote.URL, nil
}

// SetBranchUpstream records that branch tracks mergeRef on remote.
func (r *Repo) SetBranchUpstream(branch, remote, mergeRef string) error {
	return r.UpdateConfig(func(cfg *Config) error {
		cfg.Branch[branch] = BranchConfig{Remote: remote, Merge: mergeRef}
		return nil
	})
}

// BranchUpstream returns the recorded upstream of branch, if any.
func (r *Repo) BranchUpstream(branch string) (BranchConfig, bool, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return BranchConfig{}, false, err
	}
	bc, ok := cfg.Branch[branch]
	return bc, ok, nil
}

// ErrBadConfigKey reports a key Config.Get, Set or Unset does not know.
var ErrBadConfigKey = errors.New("invalid config key")

// splitConfigKey splits "section.name" or "section.<sub>.name". Subsection
// names may contain dots.
func splitConfigKey(key string) (section, sub, name string, err error) {
	first := strings.Index(key, ".")
	last := strings.LastIndex(key, ".")
	if first <= 0 || last == len(key)-1 {
		return "", "", "", fmt.Errorf("%q: %w", key, ErrBadConfigKey)
	}
	section, name = key[:first], key[last+1:]
	if first != last {
		sub = key[first+1 : last]
	}
	return section, sub, name, nil
}

// Get returns the value stored under a dotted key such as "user.name" or
// "branch.main.remote".
func (c *Config) Get(key string) (string, bool, error) {
	section, sub, name, err := splitConfigKey(key)
	if err != nil {
		return "", false, err
	}
	var v string
	switch {
	case section == "user" && sub == "" && name == "name":
		v = c.User.Name
	case section == "user" && sub == "" && name == "email":
		v = c.User.Email
	case section == "status" && sub == "" && name == "rename_threshold":
		if c.Status.RenameThreshold != 0 {
			v = strconv.Itoa(c.Status.RenameThreshold)
		}
	case section == "merge" && sub == "" && name == "ff":
		v = c.Merge.FF
	case section == "remote" && sub != "" && name == "url":
		v = c.Remote[sub].URL
	case section == "branch" && sub != "" && name == "remote":
		v = c.Branch[sub].Remote
	case section == "branch" && sub != "" && name == "merge":
		v = c.Branch[sub].Merge
	default:
		return "", false, fmt.Errorf("%q: %w", key, ErrBadConfigKey)
	}
	return v, v != "", nil
}

// Set stores value under key. An empty value clears the key.
func (c *Config) Set(key, value string) error {
	section, sub, name, err := splitConfigKey(key)
	if err != nil {
		return err
	}
	switch {
	case section == "user" && sub == "" && name == "name":
		c.User.Name = value
	case section == "user" && sub == "" && name == "email":
		c.User.Email = value
	case section == "status" && sub == "" && name == "rename_threshold":
		n := 0
		if value != "" {
			if n, err = strconv.Atoi(value); err != nil || n < 0 || n > 100 {
				return fmt.Errorf("%s: %q is not a percentage between 0 and 100", key, value)
			}
		}
		c.Status.RenameThreshold = n
	case section == "merge" && sub == "" && name == "ff":
		switch value {
		case "", "true", "false", "only":
		default:
			return fmt.Errorf("%s: %q must be true, false or only", key, value)
		}
		c.Merge.FF = value
	case section == "remote" && sub != "" && name == "url":
		if value == "" {
			delete(c.Remote, sub)
			return nil
		}
		if c.Remote == nil {
			c.Remote = make(map[string]RemoteConfig)
		}
		c.Remote[sub] = RemoteConfig{URL: value}
	case section == "branch" && sub != "" && (name == "remote" || name == "merge"):
		if c.Branch == nil {
			c.Branch = make(map[string]BranchConfig)
		}
		bc := c.Branch[sub]
		if name == "remote" {
			bc.Remote = value
		} else {
			bc.Merge = value
		}
		if bc == (BranchConfig{}) {
			delete(c.Branch, sub)
		} else {
			c.Branch[sub] = bc
		}
	default:
		return fmt.Errorf("%q: %w", key, ErrBadConfigKey)
	}
	return nil
}

// List returns every non-empty key as "key=value", sorted by key.
func (c *Config) List() []string {
	var out []string
	add := func(key, value string) {
		if value != "" {
			out = append(out, key+"="+value)
		}
	}
	add("user.name", c.User.Name)
	add("user.email", c.User.Email)
	if c.Status.RenameThreshold != 0 {
		add("status.rename_threshold", strconv.Itoa(c.Status.RenameThreshold))
	}
	add("merge.ff", c.Merge.FF)
	for name, rc := range c.Remote {
		add("remote."+name+".url", rc.URL)
	}
	for name, bc := range c.Branch {
		add("branch."+name+".remote", bc.Remote)
		add("branch."+name+".merge", bc.Merge)
	}
	sort.Strings(out)
	return out
}
