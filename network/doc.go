// Package network 提供事件驱动的连接模型。
//
// 所有连接事件都在同一个事件循环 Loop 上串行回调，传输层的读写协程只负责
// 搬运字节并把事件投递到事件循环。包括两种传输实现：
//  1. 高性能非阻塞库 netpoll 实现。
//  2. 标准库 standard 实现。
package network
