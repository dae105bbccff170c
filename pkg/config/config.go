package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/KevoDB/firstfit/pkg/blocktable"
	"github.com/KevoDB/firstfit/pkg/common/log"
)

const (
	CurrentConfigVersion = 1
	DefaultBarWidth      = 60
	MinBarWidth          = 10
	DefaultLogLevel      = "warn"

	envPrefix = "FIRSTFIT_"
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrConfigNotFound   = errors.New("config file not found")
	ErrInvalidBlockList = errors.New("invalid block list")
)

// Config describes one simulator session: the memory layout and how it is
// displayed. The layout is fixed once a session is built from it.
type Config struct {
	Version int `json:"version"`

	// Layout
	TotalMemory int    `json:"total_memory"`
	BlockSizes  []int  `json:"block_sizes"`
	Policy      string `json:"policy"` // "strict" or "legacy"

	// Display
	BarWidth   int  `json:"bar_width"`
	AutoRedraw bool `json:"auto_redraw"`

	LogLevel string `json:"log_level"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with no layout and default display
// settings. The layout must be filled in before Validate succeeds.
func NewDefaultConfig() *Config {
	return &Config{
		Version:    CurrentConfigVersion,
		Policy:     blocktable.PolicyStrict.String(),
		BarWidth:   DefaultBarWidth,
		AutoRedraw: true,
		LogLevel:   DefaultLogLevel,
	}
}

// HasLayout reports whether block sizes have been provided
func (c *Config) HasLayout() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.BlockSizes) > 0
}

// SetLayout sets the block sizes and total memory. A non-positive total is
// replaced by the sum of the block sizes.
func (c *Config) SetLayout(total int, sizes []int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.BlockSizes = append([]int(nil), sizes...)
	if total <= 0 {
		total = 0
		for _, s := range sizes {
			if s > 0 && s > math.MaxInt-total {
				total = math.MaxInt
				break
			}
			total += s
		}
	}
	c.TotalMemory = total
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}

	if len(c.BlockSizes) == 0 {
		return fmt.Errorf("%w: no block sizes specified", ErrInvalidConfig)
	}

	sum := 0
	for i, size := range c.BlockSizes {
		if size <= 0 {
			return fmt.Errorf("%w: block %d size must be positive", ErrInvalidConfig, i+1)
		}
		if size > math.MaxInt-sum {
			return fmt.Errorf("%w: block sizes overflow at block %d", ErrInvalidConfig, i+1)
		}
		sum += size
	}

	if c.TotalMemory <= 0 {
		return fmt.Errorf("%w: total memory must be positive", ErrInvalidConfig)
	}

	if _, err := blocktable.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy)
	}

	if c.BarWidth < MinBarWidth {
		return fmt.Errorf("%w: bar width must be at least %d", ErrInvalidConfig, MinBarWidth)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// TablePolicy returns the parsed ownership policy
func (c *Config) TablePolicy() blocktable.Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, _ := blocktable.ParsePolicy(c.Policy)
	return p
}

// Layout returns a copy of the block sizes and the declared total
func (c *Config) Layout() (int, []int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TotalMemory, append([]int(nil), c.BlockSizes...)
}

// LoadConfig reads a JSON config file. Fields missing from the file keep
// their defaults. The result is not validated so flags can still fill in
// the layout.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Save writes the configuration as JSON, replacing path atomically
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename config: %w", err)
	}

	return nil
}

// LoadFromEnv overrides fields from FIRSTFIT_* environment variables.
// Unparsable values are ignored.
func (c *Config) LoadFromEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val := os.Getenv(envPrefix + "TOTAL_MEMORY"); val != "" {
		if n, err := ParseUnits(val); err == nil {
			c.TotalMemory = n
		}
	}

	if val := os.Getenv(envPrefix + "BLOCKS"); val != "" {
		if sizes, err := ParseBlockSizes(val); err == nil {
			c.BlockSizes = sizes
		}
	}

	if val := os.Getenv(envPrefix + "POLICY"); val != "" {
		c.Policy = strings.ToLower(strings.TrimSpace(val))
	}

	if val := os.Getenv(envPrefix + "BAR_WIDTH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.BarWidth = n
		}
	}

	if val := os.Getenv(envPrefix + "AUTO_REDRAW"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.AutoRedraw = b
		}
	}

	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
}

// Update applies the given function to modify the configuration
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// ParseBlockSizes parses a list of block sizes separated by spaces or
// commas, such as "100 500 200".
func ParseBlockSizes(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no sizes given", ErrInvalidBlockList)
	}

	sizes := make([]int, 0, len(fields))
	for i, f := range fields {
		n, err := ParseUnits(f)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidBlockList, i+1, err)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// ParseUnits parses a single positive size in memory units
func ParseUnits(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}
