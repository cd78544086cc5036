package level

import "sync/atomic"

// Controller 为某个槽位上的角色提供每帧的移动方向
type Controller interface {
	Direction(l *Level, a *Actor) Direction
}

// SyncHook 每帧在移动前后各被调用一次，网络同步驱动通过它接入模拟循环
type SyncHook interface {
	BeforeMove(l *Level, dt float64)
	AfterMove(l *Level, dt float64)
}

// InputController 对应本地玩家的按键输入，可以在其他协程中写入
type InputController struct {
	dir atomic.Int32
}

func NewInputController() *InputController {
	return &InputController{}
}

func (ic *InputController) Set(d Direction) {
	if !d.Valid() {
		return
	}
	ic.dir.Store(int32(d))
}

func (ic *InputController) Clear() {
	ic.dir.Store(int32(DIR_NONE))
}

func (ic *InputController) Direction(*Level, *Actor) Direction {
	return Direction(ic.dir.Load())
}

// SimController 重放远端玩家的方向，由同步驱动写入
type SimController struct {
	dir Direction
}

func NewSimController() *SimController {
	return &SimController{}
}

func (sc *SimController) Set(d Direction) {
	sc.dir = d
}

func (sc *SimController) Direction(*Level, *Actor) Direction {
	return sc.dir
}
