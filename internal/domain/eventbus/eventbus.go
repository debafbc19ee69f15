package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// New 创建新的同步事件总线
func New() evbus.Bus {
	return evbus.New()
}
