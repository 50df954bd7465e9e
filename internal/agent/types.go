package agent

// FunctionType 区分合约函数的调用方式。
type FunctionType string

const (
	FunctionRead    FunctionType = "read"
	FunctionWrite   FunctionType = "write"
	FunctionPayable FunctionType = "payable"
)

// NeedsGas 判断该函数类型是否需要携带 gas 参数。
func (t FunctionType) NeedsGas() bool {
	return t == FunctionWrite || t == FunctionPayable
}

// Agent 描述了一个自治智能体的配置档案，由目录服务创建并维护。
type Agent struct {
	ID             string         `json:"agentId"`
	ContractID     string         `json:"contractId"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Status         string         `json:"status"`
	GasLimit       string         `json:"gasLimit"`
	MaxPriorityFee string         `json:"maxPriorityFee"`
	Owner          string         `json:"owner"`
	ContractState  map[string]any `json:"contractState,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
}

// Param 描述 ABI 中的一个有序参数。
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Function 描述智能体可调用的一个合约函数。在一次执行周期内不可变。
type Function struct {
	ID              string         `json:"functionId"`
	AgentID         string         `json:"agentId"`
	Name            string         `json:"functionName"`
	Signature       string         `json:"functionSignature"`
	Type            FunctionType   `json:"functionType"`
	Enabled         bool           `json:"isEnabled"`
	ValidationRules map[string]any `json:"validationRules,omitempty"`
	ABI             []Param        `json:"abi,omitempty"`
}

// Contract 描述智能体绑定的链上合约。
type Contract struct {
	ID      string `json:"contractId"`
	Name    string `json:"name"`
	Address string `json:"address"`
	// ABI 是合约级别的完整 ABI 定义，作为函数级 ABI 缺失时的回退。
	ABI []map[string]any `json:"abi,omitempty"`
}

// Schedule 描述智能体的定时唤醒配置。
type Schedule struct {
	ID             string `json:"scheduleId"`
	AgentID        string `json:"agentId"`
	Type           string `json:"scheduleType"`
	CronExpression string `json:"cronExpression"`
	Active         bool   `json:"isActive"`
	NextExecution  string `json:"nextExecution,omitempty"`
}

// StatusActive 是智能体允许被执行的状态。
const StatusActive = "active"

// Catalog 是智能体当前可用的函数目录。
type Catalog []Function

// Lookup 按名称查找已启用的函数。未启用或不存在时返回 nil。
func (c Catalog) Lookup(name string) *Function {
	for i := range c {
		if c[i].Name == name && c[i].Enabled {
			return &c[i]
		}
	}
	return nil
}

// Enabled 返回目录中所有已启用的函数。
func (c Catalog) Enabled() Catalog {
	enabled := make(Catalog, 0, len(c))
	for _, fn := range c {
		if fn.Enabled {
			enabled = append(enabled, fn)
		}
	}
	return enabled
}
