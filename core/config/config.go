package config

import (
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"

	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	Prompt string `json:"prompt"`
	Color  string `json:"color" validate:"oneof=always auto never"`

	History History `json:"history"`
	Jobs    Jobs    `json:"jobs"`

	EventLog string `json:"event_log"`
}

type History struct {
	Size int    `json:"size" validate:"gte=1"`
	File string `json:"file"`
}

type Jobs struct {
	Limit int `json:"limit" validate:"gte=1"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewOsFs()
	}
	return c.configFs
}

// Fs is the filesystem rooted at the configuration directory.
func (c *Configuration) Fs() afero.Fs {
	return c.fs()
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// ShouldColor decides whether to colorize output for a terminal (isTTY) or
// anything else.
func (c *Configuration) ShouldColor(isTTY bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTTY
	}
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Configuration {
	out := defaultConfig()
	out.configFs = afero.NewBasePathFs(afero.NewOsFs(), dir)
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
