package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type IConfig interface {
	Validate() []error
}

type GlobalConfig struct {
	DefaultProvider string                     `json:"defaultProvider" yaml:"defaultProvider"`
	Providers       map[string]*ProviderConfig `json:"providers" yaml:"providers"`
	Process         *ProcessConfig             `json:"process" yaml:"process"`
	Output          *OutputConfig              `json:"output" yaml:"output"`
	Logging         *LoggingConfig             `json:"logging" yaml:"logging"`
	DuckDBConfig    *DuckDBConfig              `json:"duckdb" yaml:"duckdb"`
	MySQLConfig     *MySQLConfig               `json:"mysql" yaml:"mysql"`
}

func (g *GlobalConfig) Validate() []error {
	var errs = make([]error, 0)
	for _, c := range g.children() {
		if es := c.Validate(); len(es) > 0 {
			errs = append(errs, es...)
		}
	}
	if len(g.Providers) == 0 {
		errs = append(errs, errors.New("至少需要配置一个 API 提供商"))
	}
	for _, name := range g.ProviderNames() {
		if es := g.Providers[name].Validate(); len(es) > 0 {
			errs = append(errs, es...)
		}
	}
	return errs
}

func (g *GlobalConfig) children() []IConfig {
	var cs []IConfig
	if g.Process != nil {
		cs = append(cs, g.Process)
	}
	if g.Output != nil {
		cs = append(cs, g.Output)
	}
	if g.Logging != nil {
		cs = append(cs, g.Logging)
	}
	if g.DuckDBConfig != nil {
		cs = append(cs, g.DuckDBConfig)
	}
	if g.MySQLConfig != nil {
		cs = append(cs, g.MySQLConfig)
	}
	return cs
}

// ProviderNames 返回排序后的提供商名称
func (g *GlobalConfig) ProviderNames() []string {
	names := make([]string, 0, len(g.Providers))
	for name := range g.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider 返回指定的提供商配置，name 为空时使用 defaultProvider
func (g *GlobalConfig) Provider(name string) (*ProviderConfig, error) {
	if name == "" {
		name = g.DefaultProvider
	}
	if name == "" {
		return nil, errors.New("未指定 API 提供商且未配置 defaultProvider")
	}
	p, ok := g.Providers[strings.ToLower(name)]
	if !ok {
		return nil, errors.Errorf("未找到 API 提供商配置: %s (可用: %s)", name, strings.Join(g.ProviderNames(), ", "))
	}
	p.Name = strings.ToLower(name)
	return p, nil
}

func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Providers: map[string]*ProviderConfig{},
		Process:   NewDefaultProcessConfig(),
		Output:    NewDefaultOutputConfig(),
		Logging:   NewDefaultLoggingConfig(),
	}
}

func TryLoadFromDisk(configFilePath string) (*GlobalConfig, error) {
	_, err := os.Stat(configFilePath)
	if err != nil {
		return nil, err
	}
	dir, file := filepath.Split(configFilePath)
	fileType := filepath.Ext(file)
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(strings.TrimSuffix(file, fileType))
	v.SetConfigType(strings.TrimPrefix(fileType, "."))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
		return nil, errors.Errorf("解析配置文件错误:%s", err.Error())
	}
	cfg := NewDefaultGlobalConfig()
	if err := v.Unmarshal(cfg, func(config *mapstructure.DecoderConfig) {
		config.TagName = "yaml"
	}); err != nil {
		return nil, errors.Wrap(err, "反序列化配置失败")
	}
	for name, p := range cfg.Providers {
		if p == nil {
			delete(cfg.Providers, name)
			continue
		}
		p.Name = name
	}
	if cfg.DuckDBConfig != nil && cfg.DuckDBConfig.Table == "" {
		cfg.DuckDBConfig.Table = NewDefaultDuckDBConfig().Table
	}
	return cfg, nil
}
