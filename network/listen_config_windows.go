package network

import "net"

// ReusePortListenConfig 在 windows 上返回默认监听配置。
func ReusePortListenConfig() *net.ListenConfig {
	return &net.ListenConfig{}
}
