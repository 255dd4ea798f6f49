// Package service 提供业务逻辑层的实现
// 服务层封装具体的业务逻辑，协调 Repository、对象存储和外部服务
package service

import "errors"

// 通用业务错误
// Handler 层根据错误类型映射到对应的 HTTP 状态码
var (
	// ErrNotFound 资源不存在
	// 非法 ID、不存在的 ID 统一归并为此错误，不向调用方区分
	ErrNotFound = errors.New("资源不存在")

	// ErrForbidden 资源存在但归属他人
	ErrForbidden = errors.New("无权访问该资源")

	// ErrInvalidInput 请求参数不合法
	ErrInvalidInput = errors.New("请求参数不合法")

	// ErrConflict 资源冲突（如用户名重复）
	ErrConflict = errors.New("资源冲突")

	// ErrAIUnavailable AI 服务未配置或不可用
	// 与普通内部错误区分，前端据此提示用户改用手动录入
	ErrAIUnavailable = errors.New("AI 服务不可用")
)

// 认证相关业务错误
var (
	ErrUserExists      = errors.New("用户名已存在")
	ErrUserNotFound    = errors.New("用户不存在")
	ErrPasswordWrong   = errors.New("用户名或密码错误")
	ErrAccountDisabled = errors.New("账号已被禁用")
)
