// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"scratch-edu-server/internal/model"
)

// MistakeFilter 错题列表的筛选条件
// 各条件之间是 AND 关系，零值字段表示不过滤
type MistakeFilter struct {
	Subject    string // 学科，为空则不过滤
	Tag        string // 知识点标签，为空则不过滤
	IsMastered *bool  // 是否已掌握，nil 则不过滤
}

// MistakeRepository 错题数据访问层
type MistakeRepository struct {
	db *gorm.DB
}

// NewMistakeRepository 创建 MistakeRepository 实例
func NewMistakeRepository(db *gorm.DB) *MistakeRepository {
	return &MistakeRepository{db: db}
}

// Create 创建新错题
func (r *MistakeRepository) Create(ctx context.Context, mistake *model.MistakeQuestion) error {
	return r.db.WithContext(ctx).Create(mistake).Error
}

// GetByID 根据 ID 获取错题
// 参数:
//   - ctx: 上下文
//   - id: 错题ID
//
// 返回:
//   - *model.MistakeQuestion: 错题对象，未找到返回 nil
//   - error: 数据库错误
func (r *MistakeRepository) GetByID(ctx context.Context, id int64) (*model.MistakeQuestion, error) {
	var mistake model.MistakeQuestion
	err := r.db.WithContext(ctx).First(&mistake, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mistake, nil
}

// ListByOwner 获取用户的错题列表，支持筛选
// 参数:
//   - ctx: 上下文
//   - ownerID: 所有者用户ID
//   - filter: 筛选条件，各条件 AND 组合
//
// 返回:
//   - []model.MistakeQuestion: 错题列表，按创建时间倒序
//   - error: 数据库错误
func (r *MistakeRepository) ListByOwner(ctx context.Context, ownerID int64, filter MistakeFilter) ([]model.MistakeQuestion, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)

	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if filter.Tag != "" {
		// JSON 数组包含查询，MySQL 与 SQLite 均支持
		query = query.Where(datatypes.JSONArrayQuery("tags").Contains(filter.Tag))
	}
	if filter.IsMastered != nil {
		query = query.Where("is_mastered = ?", *filter.IsMastered)
	}

	var mistakes []model.MistakeQuestion
	err := query.Order("created_at DESC").Find(&mistakes).Error
	return mistakes, err
}

// Update 更新错题信息
// Save 会更新所有字段，调用前必须加载完整对象
func (r *MistakeRepository) Update(ctx context.Context, mistake *model.MistakeQuestion) error {
	return r.db.WithContext(ctx).Save(mistake).Error
}

// UpdateFields 更新错题的指定字段
func (r *MistakeRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.MistakeQuestion{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除错题
// 注意: 对象存储中的错题图片需要在服务层先行清理
func (r *MistakeRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.MistakeQuestion{}, id).Error
}

// ListByOwnerID 获取用户的全部错题，不做筛选
// 管理后台级联删除用户时使用
func (r *MistakeRepository) ListByOwnerID(ctx context.Context, ownerID int64) ([]model.MistakeQuestion, error) {
	var mistakes []model.MistakeQuestion
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&mistakes).Error
	return mistakes, err
}

// CountByOwner 统计用户的错题总数
func (r *MistakeRepository) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MistakeQuestion{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

// CountMasteredByOwner 统计用户已掌握的错题数量
func (r *MistakeRepository) CountMasteredByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MistakeQuestion{}).
		Where("owner_id = ? AND is_mastered = ?", ownerID, true).
		Count(&count).Error
	return count, err
}

// CountBySubject 按学科统计用户的错题数量
// 返回:
//   - map[string]int64: 学科到数量的映射，没有错题的学科不出现
//   - error: 数据库错误
func (r *MistakeRepository) CountBySubject(ctx context.Context, ownerID int64) (map[string]int64, error) {
	type row struct {
		Subject string
		Count   int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.MistakeQuestion{}).
		Select("subject, COUNT(*) as count").
		Where("owner_id = ?", ownerID).
		Group("subject").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Subject] = r.Count
	}
	return result, nil
}

// Count 统计错题总数
func (r *MistakeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MistakeQuestion{}).Count(&count).Error
	return count, err
}

// CountCreatedSince 统计指定时间之后创建的错题数量
func (r *MistakeRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MistakeQuestion{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}
