package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvOverrides holds the environment/CLI-sourced settings from spec §6:
// listen addresses and the local name override, which the textual
// screens/links/options file cannot set, a bind-retry deadline that
// takes precedence over the file's bind_timeout option, and the log
// level/format. Mirrors the teacher's viper.AutomaticEnv + SetEnvPrefix
// pattern (BREEZE_* there, SCREENLINK_* here).
type EnvOverrides struct {
	ServerAddr  string
	AdminAddr   string
	Name        string
	BindTimeout time.Duration
	LogLevel    string
	LogFormat   string
}

// LoadEnvOverrides reads SCREENLINK_* environment variables. Values
// left unset by the environment are returned as zero values so callers
// can layer CLI flags (highest priority) over them over config-file
// defaults (lowest priority).
func LoadEnvOverrides() EnvOverrides {
	v := viper.New()
	v.SetEnvPrefix("SCREENLINK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{"bind", "admin_bind", "name", "bind_timeout_seconds", "log_level", "log_format"} {
		_ = v.BindEnv(key)
	}

	out := EnvOverrides{
		ServerAddr: v.GetString("bind"),
		AdminAddr:  v.GetString("admin_bind"),
		Name:       v.GetString("name"),
		LogLevel:   v.GetString("log_level"),
		LogFormat:  v.GetString("log_format"),
	}
	if secs := v.GetInt("bind_timeout_seconds"); secs > 0 {
		out.BindTimeout = time.Duration(secs) * time.Second
	}
	return out
}
