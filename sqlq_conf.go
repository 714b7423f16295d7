package sqlq

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override loaded configuration.
const (
	EnvPath        = `SQLQ_PATH`
	EnvJournalMode = `SQLQ_JOURNAL_MODE`
	EnvLogQueries  = `SQLQ_LOG_QUERIES`
)

const (
	defaultBusyTimeout = 5 * time.Second
	openTimeout        = 5 * time.Second
	dirPerm            = 0o750
)

/*
Connection settings. Can be loaded from YAML via `LoadConfig` or `ParseConfig`,
or built in code via `DefaultConfig` and `Option` functions.

Example YAML:

	path: ./data/app.db
	busy_timeout: 5s
	foreign_keys: true
	journal_mode: WAL
	synchronous: NORMAL
	statement_cache_size: 0
	log_queries: false
*/
type Config struct {
	// File path, "file:" URI, or ":memory:".
	Path string `yaml:"path"`

	ReadOnly    bool          `yaml:"read_only"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	ForeignKeys bool          `yaml:"foreign_keys"`

	// One of DELETE, TRUNCATE, PERSIST, MEMORY, WAL, OFF. Empty means the
	// engine default.
	JournalMode string `yaml:"journal_mode"`

	// One of OFF, NORMAL, FULL, EXTRA. Empty means the engine default.
	Synchronous string `yaml:"synchronous"`

	// Zero means unbounded: each distinct source is compiled once per
	// connection lifetime. Positive values bound the cache, evicting the least
	// recently used statements.
	StatementCacheSize int `yaml:"statement_cache_size"`

	// Log every executed query at debug level.
	LogQueries bool `yaml:"log_queries"`

	// Nil means no logging.
	Logger *slog.Logger `yaml:"-"`
}

// Returns the default configuration: in-memory database, 5s busy timeout,
// foreign keys enforced, unbounded statement cache.
func DefaultConfig() Config {
	return Config{
		Path:        memoryPath,
		BusyTimeout: defaultBusyTimeout,
		ForeignKeys: true,
	}
}

/*
Parses YAML on top of `DefaultConfig` and validates the result. Doesn't read
environment variables.
*/
func ParseConfig(data []byte) (Config, error) {
	conf := DefaultConfig()
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return conf, nil
}

/*
Loads configuration from a YAML file: defaults, then the file, then
environment overrides (`SQLQ_PATH`, `SQLQ_JOURNAL_MODE`, `SQLQ_LOG_QUERIES`),
then validation.
*/
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&conf)

	if err := conf.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return conf, nil
}

func applyEnvOverrides(conf *Config) {
	if val := os.Getenv(EnvPath); val != `` {
		conf.Path = val
	}
	if val := os.Getenv(EnvJournalMode); val != `` {
		conf.JournalMode = val
	}
	if val := os.Getenv(EnvLogQueries); val != `` {
		if flag, err := strconv.ParseBool(val); err == nil {
			conf.LogQueries = flag
		}
	}
}

var (
	journalModes = []string{`DELETE`, `TRUNCATE`, `PERSIST`, `MEMORY`, `WAL`, `OFF`}
	syncModes    = []string{`OFF`, `NORMAL`, `FULL`, `EXTRA`}
)

// Checks the configuration, reporting every problem at once.
func (self Config) Validate() error {
	var errs []string

	if self.Path == `` {
		errs = append(errs, `path is required`)
	}
	if self.BusyTimeout < 0 {
		errs = append(errs, `busy_timeout must not be negative`)
	}
	if !isOneOf(self.JournalMode, journalModes) {
		errs = append(errs, `journal_mode must be one of `+strings.Join(journalModes, `, `))
	}
	if !isOneOf(self.Synchronous, syncModes) {
		errs = append(errs, `synchronous must be one of `+strings.Join(syncModes, `, `))
	}
	if self.StatementCacheSize < 0 {
		errs = append(errs, `statement_cache_size must not be negative`)
	}

	if len(errs) > 0 {
		return ErrInvalidInput.while(`validating config`).because(
			errf(`configuration errors: %s`, strings.Join(errs, `; `)),
		)
	}
	return nil
}

// True for the in-memory designator.
func (self Config) IsMemory() bool {
	return self.Path == memoryPath || self.Path == `file::memory:`
}

/*
Builds the go-sqlite3 data source name: a "file:" URI with driver parameters
such as "_busy_timeout" and "_foreign_keys". Parameters are sorted by name.
*/
func (self Config) DSN() string {
	params := url.Values{}
	params.Set(`_busy_timeout`, strconv.FormatInt(self.BusyTimeout.Milliseconds(), 10))
	if self.ForeignKeys {
		params.Set(`_foreign_keys`, `on`)
	} else {
		params.Set(`_foreign_keys`, `off`)
	}
	if self.JournalMode != `` {
		params.Set(`_journal_mode`, strings.ToUpper(self.JournalMode))
	}
	if self.Synchronous != `` {
		params.Set(`_synchronous`, strings.ToUpper(self.Synchronous))
	}
	if self.ReadOnly {
		params.Set(`mode`, `ro`)
	}

	path := self.Path
	if !strings.HasPrefix(path, `file:`) {
		path = `file:` + escapePath(path)
	}

	delim := `?`
	if strings.Contains(path, `?`) {
		delim = `&`
	}
	return path + delim + params.Encode()
}

// Escapes each segment so that "?", "#" and "%" in file names survive URI parsing.
func escapePath(path string) string {
	segs := strings.Split(path, `/`)
	for ind, seg := range segs {
		segs[ind] = url.PathEscape(seg)
	}
	return strings.Join(segs, `/`)
}

/*
Functional option for `Open`. Options are applied in order on top of
`DefaultConfig` with the given path.
*/
type Option func(*Config)

// Sets the logger. Every line carries "component=sqlq" and the path.
func WithLogger(val *slog.Logger) Option {
	return func(conf *Config) { conf.Logger = val }
}

// Sets how long the engine waits for locks held by other connections.
func WithBusyTimeout(val time.Duration) Option {
	return func(conf *Config) { conf.BusyTimeout = val }
}

// Enables or disables foreign key enforcement.
func WithForeignKeys(val bool) Option {
	return func(conf *Config) { conf.ForeignKeys = val }
}

// Sets the journal mode, for example "WAL".
func WithJournalMode(val string) Option {
	return func(conf *Config) { conf.JournalMode = val }
}

// Sets the synchronous mode, for example "NORMAL".
func WithSynchronous(val string) Option {
	return func(conf *Config) { conf.Synchronous = val }
}

// Bounds the statement cache. Zero means unbounded.
func WithStatementCacheSize(val int) Option {
	return func(conf *Config) { conf.StatementCacheSize = val }
}

// Opens the database in read-only mode.
func WithReadOnly(val bool) Option {
	return func(conf *Config) { conf.ReadOnly = val }
}

// Logs every executed query at debug level.
func WithLogQueries(val bool) Option {
	return func(conf *Config) { conf.LogQueries = val }
}

func isOneOf(val string, set []string) bool {
	if val == `` {
		return true
	}
	for _, elem := range set {
		if strings.EqualFold(val, elem) {
			return true
		}
	}
	return false
}
