package service

import (
	"fmt"
	"strconv"
)

// parseID 把路径中的字符串 ID 解析为数据库主键
// 解析失败与记录不存在同等对待，统一返回 ErrNotFound，
// 避免通过错误差异探测 ID 是否存在
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("非法的资源 ID %q: %w", raw, ErrNotFound)
	}
	return id, nil
}

// checkOwnership 校验资源归属
// 资源存在但不属于当前用户时返回 ErrForbidden
func checkOwnership(ownerID, userID int64) error {
	if ownerID != userID {
		return ErrForbidden
	}
	return nil
}
