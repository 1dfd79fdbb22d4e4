package config

import (
	"github.com/spf13/pflag"
)

// Flags are the command line overrides, they win over the environment.
type Flags struct {
	EnvFile  string
	LogLevel string
	Port     int
	Mode     string
}

func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVarP(&f.EnvFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&f.LogLevel, "log", "l", "", "Log level (overrides LOG_LEVEL)")
	fs.IntVarP(&f.Port, "port", "p", 0, "Listening port (overrides PORT)")
	fs.StringVarP(&f.Mode, "mode", "m", "", "Reply mode sync|async (overrides REPLY_MODE)")
	return f
}

func (f *Flags) Apply(cfg *Config) {
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.Port != 0 {
		cfg.Port = f.Port
	}
	if f.Mode != "" {
		cfg.Mode = ReplyMode(f.Mode)
	}
}
