package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/leeforge/imagepipe/env_mode"
	"github.com/leeforge/imagepipe/logging"
	"github.com/leeforge/imagepipe/utils"
)

const (
	// ConfigPathEnv overrides the directory config files are read from.
	ConfigPathEnv = "IMAGEPIPE_CONFIG_PATH"
	// DefaultEnvPrefix prefixes environment overrides, e.g.
	// IMAGEPIPE_PROCESSOR_MAX_WIDTH for processor.max-width.
	DefaultEnvPrefix = "IMAGEPIPE"
)

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv(ConfigPathEnv)
	if basePath == "" {
		basePath = "config"
	}

	return ConfigOptions{
		BasePath:  basePath,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: DefaultEnvPrefix,
		Optional:  true,
		WatchAble: false,
		OnChange:  nil,
	}
}

func DevConfigOptions() ConfigOptions {
	opts := DefaultConfigOptions()
	opts.WatchAble = true
	return opts
}

func NewConfig(optsArr ...ConfigOptions) (*Config, error) {
	var opts ConfigOptions
	if len(optsArr) == 0 {
		opts = DefaultConfigOptions()
	} else {
		opts = optsArr[0]
	}
	if opts.FileType == "" {
		opts.FileType = "yaml"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	instance, files, err := CreateConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Config{
		instance: instance,
		opts:     opts,
		files:    files,
	}, nil
}

// Files lists the config files that were merged, in load order.
func (c *Config) Files() []string {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	return append([]string(nil), c.files...)
}

func (c *Config) Bind(instance any) error {
	if c == nil || c.instance == nil {
		return fmt.Errorf("❌ Config instance is nil")
	}

	if instance == nil {
		return fmt.Errorf("❌ Target instance is nil")
	}

	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	if err := c.unmarshal(instance); err != nil {
		return err
	}

	if c.opts.WatchAble {
		var err error
		c.watchOnce.Do(func() {
			err = c.watch(instance)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) BindWithDefaults(instance any) error {
	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("❌ Failed to set defaults: %w", err)
	}

	if err := c.Bind(instance); err != nil {
		return err
	}

	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("❌ Failed to set defaults after unmarshal: %w", err)
	}

	return nil
}

// unmarshal decodes into instance after applying environment overrides for
// every key instance declares. Callers hold watchMutex.
func (c *Config) unmarshal(instance any) error {
	return unmarshalFrom(c.instance, c.opts, instance)
}

func unmarshalFrom(v *viper.Viper, opts ConfigOptions, instance any) error {
	applyStructEnv(v, reflect.TypeOf(instance), "", opts.EnvPrefix)

	if err := v.Unmarshal(instance); err != nil {
		return fmt.Errorf("❌ Failed to unmarshal config (path: %s, file: %s.%s): %w",
			opts.BasePath, opts.FileName, opts.FileType, err)
	}
	return nil
}

func (c *Config) Export(path string) error {
	if path == "" {
		return fmt.Errorf("❌ Export path is empty")
	}

	dir := filepath.Dir(path)
	if err := utils.CreateDir(dir); err != nil {
		return fmt.Errorf("❌ Failed to create directory %s: %w", dir, err)
	}

	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	if err := c.instance.WriteConfigAs(path); err != nil {
		return fmt.Errorf("❌ Failed to write config to %s: %w", path, err)
	}

	return nil
}

func (c *Config) Get(key string) any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()

	return c.instance.Get(key)
}

func (c *Config) Set(key string, value any) {
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	c.instance.Set(key, value)
}

// Close stops watching config files.
func (c *Config) Close() error {
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

func CreateConfig(opts ConfigOptions) (*viper.Viper, []string, error) {
	configPaths := getConfigFilePaths(opts)
	if len(configPaths) == 0 && !opts.Optional {
		return nil, nil, fmt.Errorf("❌ No valid configuration files found in path: %s", opts.BasePath)
	}

	v := viper.New()
	v.SetConfigType(opts.FileType)

	for _, configPath := range configPaths {
		tempV := viper.New()
		tempV.SetConfigFile(configPath)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("❌ Error reading config file %s: %w", configPath, err)
		}

		for _, key := range tempV.AllKeys() {
			v.Set(key, tempV.Get(key))
		}
	}

	v.SetEnvKeyReplacer(envReplacer)
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	// Override with environment variables (higher priority than config files)
	applyEnvOverrides(v, opts.EnvPrefix)

	return v, configPaths, nil
}

// envName converts a config key to its env var: processor.max-width -> PROCESSOR_MAX_WIDTH
func envName(key, envPrefix string) string {
	name := strings.ToUpper(envReplacer.Replace(key))
	if envPrefix != "" {
		name = envPrefix + "_" + name
	}
	return name
}

// applyEnvOverrides checks all config keys and overrides with environment variables if they exist.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	for _, key := range v.AllKeys() {
		if envValue := os.Getenv(envName(key, envPrefix)); envValue != "" {
			v.Set(key, envValue)
		}
	}
}

// applyStructEnv does the same for keys declared by a struct's mapstructure
// tags, so variables apply even when no file mentions the key.
func applyStructEnv(v *viper.Viper, t reflect.Type, prefix, envPrefix string) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" || !field.IsExported() {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		ft := field.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			applyStructEnv(v, ft, key, envPrefix)
			continue
		}
		if envValue := os.Getenv(envName(key, envPrefix)); envValue != "" {
			v.Set(key, envValue)
		}
	}
}

func getConfigFilePaths(opts ConfigOptions) (configFiles []string) {
	env := env_mode.Mode()
	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
		fmt.Sprintf("%s.%s", opts.FileName, env),
		fmt.Sprintf("%s.%s.local", opts.FileName, env),
	}

	for _, alias := range env.Aliases() {
		fileNames = append(fileNames,
			fmt.Sprintf("%s.%s", opts.FileName, alias),
			fmt.Sprintf("%s.%s.local", opts.FileName, alias))
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if isDir, exists, _ := utils.Exists(file); exists && !isDir {
			configFiles = append(configFiles, file)
		}
	}

	return configFiles
}

// watch reloads every file set on changes under BasePath and re-binds
// instance. Callers hold watchMutex.
func (c *Config) watch(instance any) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("❌ Failed to create config watcher: %w", err)
	}
	if err := watcher.Add(c.opts.BasePath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("❌ Failed to watch %s: %w", c.opts.BasePath, err)
	}
	c.watcher = watcher

	suffix := "." + c.opts.FileType
	prefix := c.opts.FileName
	log := c.opts.Logger.Named("config")

	go func() {
		for {
			select {
			case e, ok := <-watcher.Events:
				if !ok {
					return
				}
				base := filepath.Base(e.Name)
				if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, suffix) {
					continue
				}
				if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Remove) && !e.Has(fsnotify.Rename) {
					continue
				}
				if err := c.reload(instance); err != nil {
					log.Warn("config reload failed", zap.String("file", e.Name), zap.Error(err))
					continue
				}
				log.Info("config reloaded", zap.String("file", e.Name))
				if c.opts.OnChange != nil {
					c.opts.OnChange(e)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

// reload decodes the files into a fresh value and swaps it into instance
// only when decoding and validation succeed.
func (c *Config) reload(instance any) error {
	rv := reflect.ValueOf(instance)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("❌ Bound instance must be a non-nil pointer")
	}

	v, files, err := CreateConfig(c.opts)
	if err != nil {
		return err
	}

	// Start from zero so keys dropped from the files fall back to defaults.
	fresh := reflect.New(rv.Elem().Type())
	next := fresh.Interface()
	if err := defaults.Set(next); err != nil {
		return err
	}
	if err := unmarshalFrom(v, c.opts, next); err != nil {
		return err
	}
	if err := defaults.Set(next); err != nil {
		return err
	}
	if validator, ok := next.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return err
		}
	}

	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()
	c.instance = v
	c.files = files
	rv.Elem().Set(fresh.Elem())
	return nil
}
