// Package model 定义了与数据库表对应的数据结构
package model

import (
	"fmt"
	"time"
)

// Project 项目模型
// 对应数据库表 projects
// 项目文件（.sb3 包）统一存储到对象存储，数据库只保存元数据
type Project struct {
	// ID 项目唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// Title 项目标题
	Title string `gorm:"size:200;not null;default:未命名项目" json:"title"`

	// Description 项目描述，可选
	Description *string `gorm:"size:1000" json:"description"`

	// OwnerID 所有者用户 ID
	// 所有权是排他的：只有所有者能访问（管理后台除外）
	OwnerID int64 `gorm:"not null;index:idx_projects_owner_updated,priority:1" json:"owner_id"`

	// StoragePath 对象存储中的文件路径
	// 首次保存项目数据前为 NULL；路径由项目 ID 唯一确定，不会复用
	StoragePath *string `gorm:"size:500" json:"storage_path"`

	// Thumbnail 项目缩略图（data URL），可选
	Thumbnail *string `gorm:"type:text" json:"thumbnail"`

	// IsPublic 是否公开
	// 不变式: IsPublic == true 当且仅当 ShareToken != nil
	IsPublic bool `gorm:"default:false" json:"is_public"`

	// ShareToken 分享令牌，全局唯一
	// 仅在分享状态下存在，取消分享时与 IsPublic 一起清空
	ShareToken *string `gorm:"size:64;uniqueIndex" json:"share_token"`

	// ViewCount 浏览次数
	// 原始命中计数：同一访客重复访问也会累加
	ViewCount int64 `gorm:"default:0" json:"view_count"`

	// CreatedAt 创建时间，由 GORM 自动填充
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间，由 GORM 自动更新
	UpdatedAt time.Time `gorm:"autoUpdateTime;index:idx_projects_owner_updated,priority:2" json:"updated_at"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// StorageObjectName 返回项目文件在对象存储中的路径
// 路径是项目标识的确定性函数，不同项目之间永不复用
func (p *Project) StorageObjectName() string {
	return fmt.Sprintf("projects/%d/project.sb3", p.ID)
}
