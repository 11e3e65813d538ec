package meta

import (
	"errors"
	"testing"

	"github.com/coregx/btregex/syntax"
)

// TestDefaultConfigValues verifies DefaultConfig returns expected field values.
func TestDefaultConfigValues(t *testing.T) {
	c := DefaultConfig()

	if c.Syntax != syntax.SyntaxRuby {
		t.Error("Syntax should be SyntaxRuby by default")
	}
	if c.Encoding != syntax.UTF8 {
		t.Errorf("Encoding = %v, want UTF-8", c.Encoding.Name())
	}
	if !c.EnableOptimization || !c.EnableAutoPossessive || !c.EnableCombExpCheck {
		t.Error("optimizations should be enabled by default")
	}
	if c.CaseFoldAltThreshold != 8 {
		t.Errorf("CaseFoldAltThreshold = %d, want 8", c.CaseFoldAltThreshold)
	}
	if c.BigRepeatThreshold != 512 {
		t.Errorf("BigRepeatThreshold = %d, want 512", c.BigRepeatThreshold)
	}
	if c.MinMultiLiterals != 4 {
		t.Errorf("MinMultiLiterals = %d, want 4", c.MinMultiLiterals)
	}
	if c.StateCheckMaxBytes != 16<<10 {
		t.Errorf("StateCheckMaxBytes = %d, want %d", c.StateCheckMaxBytes, 16<<10)
	}
	if c.MaxStackEntries != 0 {
		t.Errorf("MaxStackEntries = %d, want 0", c.MaxStackEntries)
	}
}

// TestDefaultConfigPassesValidation verifies DefaultConfig always validates.
func TestDefaultConfigPassesValidation(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{"nil syntax", func(c *Config) { c.Syntax = nil }, "Syntax"},
		{"nil encoding", func(c *Config) { c.Encoding = nil }, "Encoding"},
		{"search-time option", func(c *Config) { c.Options = syntax.OptionNotBOL }, "Options"},
		{"posix region at compile time", func(c *Config) { c.Options = syntax.OptionPosixRegion }, "Options"},
		{"find longest allowed", func(c *Config) { c.Options = syntax.OptionFindLongest }, ""},
		{"ignore case allowed", func(c *Config) { c.Options = syntax.OptionIgnoreCase | syntax.OptionMultiline }, ""},
		{"zero fold threshold", func(c *Config) { c.CaseFoldAltThreshold = 0 }, "CaseFoldAltThreshold"},
		{"huge fold threshold", func(c *Config) { c.CaseFoldAltThreshold = 1_001 }, "CaseFoldAltThreshold"},
		{"zero big repeat", func(c *Config) { c.BigRepeatThreshold = 0 }, "BigRepeatThreshold"},
		{"one multi literal", func(c *Config) { c.MinMultiLiterals = 1 }, "MinMultiLiterals"},
		{"negative check bytes", func(c *Config) { c.StateCheckMaxBytes = -1 }, "StateCheckMaxBytes"},
		{"zero check bytes allowed", func(c *Config) { c.StateCheckMaxBytes = 0 }, ""},
		{"negative stack", func(c *Config) { c.MaxStackEntries = -5 }, "MaxStackEntries"},
		{"ascii encoding", func(c *Config) { c.Encoding = syntax.ASCII }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "MaxStackEntries", Message: "must not be negative"}
	want := "btregex: invalid config: MaxStackEntries: must not be negative"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCompileWithInvalidConfig(t *testing.T) {
	c := DefaultConfig()
	c.CaseFoldAltThreshold = 0
	_, err := CompileWithConfig("a", c)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("CompileWithConfig error = %v, want *ConfigError", err)
	}
}
