// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// 用户角色
const (
	RoleUser  = "user"  // 普通用户
	RoleAdmin = "admin" // 管理员
)

// User 用户模型
// 对应数据库表 users
// 存储用户的基本信息，包括认证凭据
type User struct {
	// ID 用户唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// Username 用户名，用于登录，全局唯一
	// 长度限制 50 字符，建立唯一索引
	Username string `gorm:"size:50;uniqueIndex;not null" json:"username"`

	// PasswordHash 密码的 bcrypt 哈希值
	// 永远不要存储明文密码！
	PasswordHash string `gorm:"size:255;not null" json:"-"` // json:"-" 表示序列化时忽略此字段

	// Avatar 用户头像 URL，可选
	// 使用指针类型表示可以为 NULL
	Avatar *string `gorm:"size:500" json:"avatar,omitempty"`

	// Role 用户角色: user / admin
	// 管理后台接口要求 admin 角色
	Role string `gorm:"size:20;default:user" json:"role"`

	// IsActive 账号是否启用
	// 被管理员停用的账号无法登录
	IsActive bool `gorm:"default:true" json:"is_active"`

	// CreatedAt 创建时间，由 GORM 自动填充
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间，由 GORM 自动更新
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Projects 用户拥有的项目（一对多关系）
	// 这是 GORM 的关联关系，不会在数据库中创建字段
	Projects []Project `gorm:"foreignKey:OwnerID" json:"projects,omitempty"`

	// Mistakes 用户拥有的错题（一对多关系）
	Mistakes []MistakeQuestion `gorm:"foreignKey:OwnerID" json:"mistakes,omitempty"`
}

// TableName 指定表名
// GORM 会使用这个方法返回的表名，而不是默认的复数形式
func (User) TableName() string {
	return "users"
}

// IsAdmin 判断用户是否是管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
