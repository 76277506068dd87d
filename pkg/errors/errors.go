package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrNoPermission 当前用户无权执行该操作
var ErrNoPermission = errors.New("无权执行该操作")

// ErrStorageUnavailable 对象存储不可用
var ErrStorageUnavailable = errors.New("文件存储服务不可用")
