//go:build !windows

package network

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReusePortListenConfig 返回开启 SO_REUSEADDR 与 SO_REUSEPORT 的监听配置。
func ReusePortListenConfig() *net.ListenConfig {
	return &net.ListenConfig{Control: func(network, address string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); opErr != nil {
				return
			}
			opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}
		return opErr
	}}
}
