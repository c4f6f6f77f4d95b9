package network

import (
	"errors"
	"syscall"
)

// UnlinkUdsFile 删除残留的 unix 套接字文件，文件不存在时不报错。
func UnlinkUdsFile(network, addr string) error {
	if network != "unix" {
		return nil
	}
	if err := syscall.Unlink(addr); err != nil && !errors.Is(err, syscall.ENOENT) {
		return err
	}
	return nil
}
