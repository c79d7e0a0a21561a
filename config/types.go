package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/leeforge/imagepipe/logging"
)

type Validator interface {
	Validate() error
}

type ConfigInterface interface {
	Bind(instance any) error
	BindWithDefaults(instance any) error
	Export(path string) error
	Close() error
}

type Config struct {
	instance   *viper.Viper
	opts       ConfigOptions
	files      []string
	watchOnce  sync.Once
	watchMutex sync.RWMutex
	watcher    *fsnotify.Watcher
}

type ConfigOptions struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	// Optional allows starting without any config file; struct defaults
	// and environment variables still apply.
	Optional  bool
	WatchAble bool
	OnChange  func(e fsnotify.Event)
	Logger    logging.Logger
}
