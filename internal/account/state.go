package account

// ============================================================================
// 账户状态机
// ============================================================================
//
//   ACTIVE ──freeze──> FROZEN
//     │  <──unfreeze──   │
//     │                  │
//     └──close──> CLOSED <──close──┘
//
// CLOSED 是终态：只允许重复 close（空操作），其余变更一律拒绝。
//
// 每个状态对应一个无状态的处理器单例，账户按状态标签选择处理器，
// 处理器只负责判定合法性并给出下一状态，不持有任何数据。
// ============================================================================

// Status 账户状态标签
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusFrozen Status = "FROZEN"
	StatusClosed Status = "CLOSED"
)

// ValidTransitions 合法的状态迁移（不含空操作）
var ValidTransitions = map[Status][]Status{
	StatusActive: {StatusFrozen, StatusClosed},
	StatusFrozen: {StatusActive, StatusClosed},
}

// CanTransition 判断 from -> to 是否为合法迁移
func CanTransition(from, to Status) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Valid 判断状态标签是否已知
func (s Status) Valid() bool {
	_, ok := handlers[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// state 单个状态下的行为
type state interface {
	deposit() error
	// withdraw 在余额检查之前判定状态是否允许出账
	withdraw() error
	freeze() (Status, error)
	unfreeze() (Status, error)
	close() Status
}

type activeState struct{}

func (activeState) deposit() error            { return nil }
func (activeState) withdraw() error           { return nil }
func (activeState) freeze() (Status, error)   { return StatusFrozen, nil }
func (activeState) unfreeze() (Status, error) { return StatusActive, nil }
func (activeState) close() Status             { return StatusClosed }

type frozenState struct{}

func (frozenState) deposit() error            { return nil }
func (frozenState) withdraw() error           { return ErrAccountFrozen }
func (frozenState) freeze() (Status, error)   { return StatusFrozen, nil }
func (frozenState) unfreeze() (Status, error) { return StatusActive, nil }
func (frozenState) close() Status             { return StatusClosed }

type closedState struct{}

func (closedState) deposit() error            { return ErrAccountClosed }
func (closedState) withdraw() error           { return ErrAccountClosed }
func (closedState) freeze() (Status, error)   { return StatusClosed, ErrAccountClosed }
func (closedState) unfreeze() (Status, error) { return StatusClosed, ErrAccountClosed }
func (closedState) close() Status             { return StatusClosed }

var handlers = map[Status]state{
	StatusActive: activeState{},
	StatusFrozen: frozenState{},
	StatusClosed: closedState{},
}
