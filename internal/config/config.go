package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// PathEnv overrides the config file location.
const PathEnv = "DIALOGTEST_CONFIG"

type Config struct {
	DBPath      string
	Listen      string
	Token       string
	Timeout     time.Duration
	QueueSize   int
	Encoding    string
	Command     string
	RuntimeHome string
	Runtime     string
	ClassPath   string
	PTY         bool
	StripANSI   bool
	LogLevel    string
	Echo        bool
	Record      bool
	Watch       bool
	ConfigPath  string
	PrintToken  bool

	// Args holds the positional arguments left after flag parsing.
	Args []string
}

func defaults() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".config", "dialogtest")
	cfg := &Config{
		DBPath:     filepath.Join(dir, "dialogtest.db"),
		Listen:     "127.0.0.1:8766",
		QueueSize:  4096,
		Runtime:    "java",
		LogLevel:   "info",
		Record:     true,
		ConfigPath: filepath.Join(dir, "config"),
	}
	if p := os.Getenv(PathEnv); p != "" {
		cfg.ConfigPath = p
	}
	return cfg, nil
}

// Load builds the configuration for the named subcommand: defaults, then
// the config file, then flags parsed from args.
func Load(name string, args []string) (*Config, error) {
	cfg, err := defaults()
	if err != nil {
		return nil, err
	}

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "run history database path")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "watch server address")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "watch server token (auto-generated if empty)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "default per-step timeout for scripts without one (0 waits forever)")
	fs.IntVar(&cfg.QueueSize, "queue", cfg.QueueSize, "lines buffered per output stream")
	fs.StringVar(&cfg.Encoding, "encoding", cfg.Encoding, "text encoding of the program's streams (IANA name)")
	fs.StringVar(&cfg.Command, "command", cfg.Command, "program to launch; the script entry is passed as its first argument")
	fs.StringVar(&cfg.RuntimeHome, "runtime-home", cfg.RuntimeHome, "runtime installation directory (defaults to JAVA_HOME)")
	fs.StringVar(&cfg.Runtime, "runtime", cfg.Runtime, "runtime executable name inside <runtime-home>/bin")
	fs.StringVar(&cfg.ClassPath, "cp", cfg.ClassPath, "search path handed to the runtime (defaults to CLASSPATH)")
	fs.BoolVar(&cfg.PTY, "pty", cfg.PTY, "attach stdin and stdout to a pseudo-terminal")
	fs.BoolVar(&cfg.StripANSI, "strip-ansi", cfg.StripANSI, "remove terminal escape sequences from output lines")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.Echo, "echo", cfg.Echo, "log every transcript line as it happens")
	fs.BoolVar(&cfg.Record, "record", cfg.Record, "store runs in the history database")
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "serve live transcripts while running")
	fs.BoolVar(&cfg.PrintToken, "print-token", false, "print token to stdout (for local debugging)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Args = fs.Args()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s: must not be negative", c.Timeout)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("invalid queue size %d: must be positive", c.QueueSize)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.DBPath) == "" && c.Record {
		return fmt.Errorf("db path is required when recording runs")
	}
	return nil
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := c.set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "DBPath":
		c.DBPath = value
	case "Listen":
		c.Listen = value
	case "Token":
		c.Token = value
	case "Timeout":
		c.Timeout, err = time.ParseDuration(value)
	case "QueueSize":
		c.QueueSize, err = strconv.Atoi(value)
	case "Encoding":
		c.Encoding = value
	case "Command":
		c.Command = value
	case "RuntimeHome":
		c.RuntimeHome = value
	case "Runtime":
		c.Runtime = value
	case "ClassPath":
		c.ClassPath = value
	case "PTY":
		c.PTY, err = strconv.ParseBool(value)
	case "StripANSI":
		c.StripANSI, err = strconv.ParseBool(value)
	case "LogLevel":
		c.LogLevel = value
	case "Echo":
		c.Echo, err = strconv.ParseBool(value)
	case "Record":
		c.Record, err = strconv.ParseBool(value)
	case "Watch":
		c.Watch, err = strconv.ParseBool(value)
	}
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return nil
}

func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DBPath=%s\nListen=%s\nToken=%s\n", c.DBPath, c.Listen, c.Token)
	if c.Timeout > 0 {
		fmt.Fprintf(&b, "Timeout=%s\n", c.Timeout)
	}
	fmt.Fprintf(&b, "QueueSize=%d\nLogLevel=%s\n", c.QueueSize, c.LogLevel)
	for _, kv := range [][2]string{
		{"Encoding", c.Encoding},
		{"Command", c.Command},
		{"RuntimeHome", c.RuntimeHome},
		{"Runtime", c.Runtime},
		{"ClassPath", c.ClassPath},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, "%s=%s\n", kv[0], kv[1])
		}
	}
	return os.WriteFile(c.ConfigPath, []byte(b.String()), 0600)
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
