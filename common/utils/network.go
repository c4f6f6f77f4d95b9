package utils

import "net"

const UnknownIPAddr = "-"

var localIP string

// LocalIP 返回主机的IP地址。
func LocalIP() string {
	return localIP
}

// AdvertiseAddr 把未指定主机的监听地址（如 ":80" 与 "0.0.0.0:80"）换成本机 IP，用于服务注册。
// 无法解析或找不到本机 IP 时原样返回。
func AdvertiseAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host != "" {
		if ip := net.ParseIP(host); ip == nil || !ip.IsUnspecified() {
			return addr
		}
	}
	if localIP == UnknownIPAddr {
		return addr
	}
	return net.JoinHostPort(localIP, port)
}

// 遍历本地网络接口以查找本地IP，它只应在初始化阶段调用。
func getLocalIP() string {
	inters, err := net.Interfaces()
	if err != nil {
		return UnknownIPAddr
	}
	for _, inter := range inters {
		if inter.Flags&net.FlagLoopback != net.FlagLoopback &&
			inter.Flags&net.FlagUp != 0 {
			addrs, err := inter.Addrs()
			if err != nil {
				return UnknownIPAddr
			}
			for _, addr := range addrs {
				if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
					return ipNet.IP.String()
				}
			}
		}
	}

	return UnknownIPAddr
}

func init() {
	localIP = getLocalIP()
}
