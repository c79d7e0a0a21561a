package config

import (
	"fmt"

	validatorV10 "github.com/go-playground/validator/v10"

	"github.com/leeforge/imagepipe/logging"
	"github.com/leeforge/imagepipe/media/processor"
	"github.com/leeforge/imagepipe/media/queue"
	"github.com/leeforge/imagepipe/media/source"
)

var validate = validatorV10.New()

// App is the complete imagepipe configuration.
//
//	processor:
//	  max-width: 4096
//	  blur-sigma: 3
//	logging:
//	  level: debug
//	source:
//	  base-path: ./media
//	  oss:
//	    enabled: true
//	    bucket: photos
//	queue:
//	  workers: 8
type App struct {
	Processor processor.Config `mapstructure:"processor" json:"processor" yaml:"processor"`
	Logging   logging.Config   `mapstructure:"logging" json:"logging" yaml:"logging"`
	Source    source.Config    `mapstructure:"source" json:"source" yaml:"source"`
	Queue     queue.Config     `mapstructure:"queue" json:"queue" yaml:"queue"`
}

var _ Validator = (*App)(nil)

// Validate checks every section against its validate tags.
func (a *App) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("❌ Config validation failed: %w", err)
	}
	return nil
}

// LoadApp reads, defaults and validates the application config. The
// returned Config keeps watching files when opts.WatchAble is set; call
// Close when done.
func LoadApp(opts ConfigOptions) (*App, *Config, error) {
	c, err := NewConfig(opts)
	if err != nil {
		return nil, nil, err
	}

	app := &App{}
	if err := c.BindWithDefaults(app); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	if err := app.Validate(); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	return app, c, nil
}
