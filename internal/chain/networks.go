package chain

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultNetworkID 是缺省的目标网络（Sonic 测试网）。
const DefaultNetworkID = 57054

// NetworkDefinitions 对应 configs/networks.yaml 的结构。
type NetworkDefinitions struct {
	Networks map[string]NetworkDefinition `yaml:"networks"`
}

// NetworkDefinition 描述单个网络的执行服务入口。
type NetworkDefinition struct {
	ID           int    `yaml:"id"`
	ExecutionURL string `yaml:"execution_url"`
	Description  string `yaml:"description"`
}

// LoadNetworkDefinitions 解析网络定义文件。路径为空时返回空定义。
func LoadNetworkDefinitions(path string) (NetworkDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return NetworkDefinitions{Networks: map[string]NetworkDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return NetworkDefinitions{}, fmt.Errorf("读取网络配置失败: %w", err)
	}

	var defs NetworkDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return NetworkDefinitions{}, fmt.Errorf("解析网络配置失败: %w", err)
	}
	if defs.Networks == nil {
		defs.Networks = map[string]NetworkDefinition{}
	}
	return defs, nil
}

// Resolve 按名称查找网络定义。
func (d NetworkDefinitions) Resolve(name string) (NetworkDefinition, bool) {
	def, ok := d.Networks[name]
	return def, ok
}
