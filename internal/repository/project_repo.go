// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"scratch-edu-server/internal/model"
)

// ProjectRepository 项目数据访问层
// 负责项目相关的所有数据库操作
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建 ProjectRepository 实例
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create 创建新项目
// 参数:
//   - ctx: 上下文
//   - project: 项目对象，ID 和时间字段会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// GetByID 根据 ID 获取项目
// 参数:
//   - ctx: 上下文
//   - id: 项目ID
//
// 返回:
//   - *model.Project: 项目对象，未找到返回 nil
//   - error: 数据库错误
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

// GetByShareToken 根据分享令牌获取公开项目
// 公开接口使用；即使令牌命中，也必须同时满足 is_public = true，
// 防止残留令牌被访问
// 参数:
//   - ctx: 上下文
//   - token: 分享令牌
//
// 返回:
//   - *model.Project: 项目对象，未找到或未公开返回 nil
//   - error: 数据库错误
func (r *ProjectRepository) GetByShareToken(ctx context.Context, token string) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Where("share_token = ? AND is_public = ?", token, true).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

// ListByOwner 获取用户的所有项目
// 参数:
//   - ctx: 上下文
//   - ownerID: 所有者用户ID
//
// 返回:
//   - []model.Project: 项目列表，按更新时间倒序（最新的在前）
//   - error: 数据库错误
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&projects).Error
	return projects, err
}

// Update 更新项目信息
// 参数:
//   - ctx: 上下文
//   - project: 包含要更新字段的项目对象，必须包含 ID
//
// 返回:
//   - error: 数据库错误
func (r *ProjectRepository) Update(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

// UpdateFields 更新项目的指定字段
// 与 Save 不同，可以把可空字段显式置为 NULL
// 参数:
//   - ctx: 上下文
//   - id: 项目ID
//   - fields: 要更新的字段映射
//
// 返回:
//   - error: 数据库错误
func (r *ProjectRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(fields).Error
}

// IncrementViewCount 浏览次数加一
// 分享页每次成功读取都会调用，包括同一访客的重复访问
func (r *ProjectRepository) IncrementViewCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// Delete 删除项目
// 注意: 对象存储中的项目文件需要在服务层先行清理
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Project{}, id).Error
}

// ListWithPagination 分页获取所有项目，支持标题模糊搜索和排序
// 管理后台使用
// 参数:
//   - ctx: 上下文
//   - page: 页码，从 1 开始
//   - pageSize: 每页数量
//   - search: 标题搜索关键字，为空则不过滤
//   - sortBy: 排序字段（title/created_at/updated_at/view_count）
//   - sortDesc: 是否倒序
//
// 返回:
//   - []model.Project: 项目列表
//   - int64: 总数量
//   - error: 数据库错误
func (r *ProjectRepository) ListWithPagination(ctx context.Context, page, pageSize int, search, sortBy string, sortDesc bool) ([]model.Project, int64, error) {
	var projects []model.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Project{})
	if search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 排序字段白名单，防止 SQL 注入
	switch sortBy {
	case "title", "created_at", "updated_at", "view_count":
	default:
		sortBy = "updated_at"
	}
	order := sortBy + " ASC"
	if sortDesc {
		order = sortBy + " DESC"
	}

	offset := (page - 1) * pageSize
	err := query.
		Order(order).
		Offset(offset).
		Limit(pageSize).
		Find(&projects).Error

	return projects, total, err
}

// CountByOwner 统计用户的项目数量
func (r *ProjectRepository) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

// Count 统计项目总数
func (r *ProjectRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).Count(&count).Error
	return count, err
}

// CountCreatedSince 统计指定时间之后创建的项目数量
func (r *ProjectRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}
