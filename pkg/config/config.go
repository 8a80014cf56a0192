// Package config loads user-wide grit settings from ~/.gritconfig.toml
// and GRIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/odvcencio/grit/pkg/repo"
)

const (
	EnvPrefix      = "GRIT"
	configName     = ".gritconfig"
	configType     = "toml"
	DefaultLevel   = "warn"
	DefaultFormat  = "text"
	DefaultFFValue = "true"
)

// Setting keys.
const (
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyLogOutput       = "log.output"
	KeyUserName        = "user.name"
	KeyUserEmail       = "user.email"
	KeyRenameThreshold = "status.rename_threshold"
	KeyMergeFF         = "merge.ff"
	KeyProgress        = "progress"
)

var ErrConfigNotFound = errors.New("config file not found")

type LogSettings struct {
	Level  string   `mapstructure:"level"`
	Format string   `mapstructure:"format"`
	Output []string `mapstructure:"output"`
}

type UserSettings struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

type StatusSettings struct {
	RenameThreshold int `mapstructure:"rename_threshold"`
}

type MergeSettings struct {
	FF string `mapstructure:"ff"`
}

// Settings is the decoded global configuration.
type Settings struct {
	Log      LogSettings    `mapstructure:"log"`
	User     UserSettings   `mapstructure:"user"`
	Status   StatusSettings `mapstructure:"status"`
	Merge    MergeSettings  `mapstructure:"merge"`
	Progress bool           `mapstructure:"progress"`

	file    string
	fromEnv map[string]bool
}

// Default returns the settings used when no file or environment applies.
func Default() *Settings {
	return &Settings{
		Log:      LogSettings{Level: DefaultLevel, Format: DefaultFormat, Output: []string{"="}},
		Status:   StatusSettings{RenameThreshold: repo.DefaultRenameThreshold},
		Merge:    MergeSettings{FF: DefaultFFValue},
		Progress: true,
		fromEnv:  map[string]bool{},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
	v.SetDefault(KeyLogOutput, d.Log.Output)
	v.SetDefault(KeyUserName, "")
	v.SetDefault(KeyUserEmail, "")
	v.SetDefault(KeyRenameThreshold, d.Status.RenameThreshold)
	v.SetDefault(KeyMergeFF, d.Merge.FF)
	v.SetDefault(KeyProgress, d.Progress)
}

var keys = []string{
	KeyLogLevel, KeyLogFormat, KeyLogOutput, KeyUserName, KeyUserEmail,
	KeyRenameThreshold, KeyMergeFF, KeyProgress,
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load reads settings. An explicit path must exist; with an empty path
// ~/.gritconfig.toml is used when present and defaults apply otherwise.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("load config: home dir: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(configName)
		v.SetConfigType(configType)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case path != "" && errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("load config %s: %w", path, ErrConfigNotFound)
		default:
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	s := &Settings{fromEnv: map[string]bool{}}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("load config: decode: %w", err)
	}
	s.file = v.ConfigFileUsed()
	for _, k := range keys {
		if _, ok := os.LookupEnv(EnvName(k)); ok {
			s.fromEnv[k] = true
		}
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.Status.RenameThreshold > 100 {
		return fmt.Errorf("%s: %d is above 100", KeyRenameThreshold, s.Status.RenameThreshold)
	}
	// A TOML boolean decodes weakly to "1" or "0".
	switch s.Merge.FF {
	case "1":
		s.Merge.FF = "true"
	case "0":
		s.Merge.FF = "false"
	}
	if _, err := repo.ParseMergePreference(s.Merge.FF); err != nil {
		return err
	}
	return nil
}

// File returns the config file that was read, or "".
func (s *Settings) File() string { return s.file }

// FromEnv reports whether key was set through the environment.
func (s *Settings) FromEnv(key string) bool { return s.fromEnv[key] }

// WithRepo layers repository settings over s. Values set through the
// environment keep priority over the repository file.
func (s *Settings) WithRepo(cfg *repo.Config) *Settings {
	out := *s
	out.Log.Output = append([]string(nil), s.Log.Output...)
	if cfg == nil {
		return &out
	}
	if cfg.User.Name != "" && !s.FromEnv(KeyUserName) {
		out.User.Name = cfg.User.Name
	}
	if cfg.User.Email != "" && !s.FromEnv(KeyUserEmail) {
		out.User.Email = cfg.User.Email
	}
	if cfg.Status.RenameThreshold != 0 && !s.FromEnv(KeyRenameThreshold) {
		out.Status.RenameThreshold = cfg.Status.RenameThreshold
	}
	if cfg.Merge.FF != "" && !s.FromEnv(KeyMergeFF) {
		out.Merge.FF = cfg.Merge.FF
	}
	return &out
}

// Identity returns the configured user identity.
func (s *Settings) Identity() repo.Identity {
	return repo.Identity{Name: s.User.Name, Email: s.User.Email}
}

// MergePreference parses merge.ff.
func (s *Settings) MergePreference() repo.MergePreference {
	pref, err := repo.ParseMergePreference(s.Merge.FF)
	if err != nil {
		return repo.PreferenceNone
	}
	return pref
}
