package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scratch-edu-server/internal/config"
	"scratch-edu-server/internal/model"
	"scratch-edu-server/internal/repository"
	"scratch-edu-server/internal/storage"
	"scratch-edu-server/pkg/util"
)

// pdfTestConfig 不指定字体路径，由服务自行探测
var pdfTestConfig = config.PDFConfig{}

// newTestDB 创建内存 SQLite 数据库并迁移全部表
// 限制单连接，避免每个连接各自拿到一个空库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.User{}, &model.Project{}, &model.MistakeQuestion{}); err != nil {
		t.Fatalf("迁移表失败: %v", err)
	}
	return db
}

// newTestUser 创建测试用户
func newTestUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()

	hash, err := util.HashPassword("secret1")
	if err != nil {
		t.Fatalf("哈希密码失败: %v", err)
	}
	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
	return user
}

// newTestProjectService 创建带内存存储的项目服务
func newTestProjectService(t *testing.T, db *gorm.DB) (*ProjectService, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	return NewProjectService(repository.NewProjectRepository(db), store), store
}

// newTestMistakeService 创建带内存存储的错题服务
// AI 服务处于禁用状态
func newTestMistakeService(t *testing.T, db *gorm.DB) (*MistakeService, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	svc := NewMistakeService(
		repository.NewMistakeRepository(db),
		store,
		&AIService{}, // 未配置 API Key
		NewPDFService(&pdfTestConfig, store),
	)
	return svc, store
}

// createTestMistake 创建一条基础错题记录
func createTestMistake(t *testing.T, svc *MistakeService, ownerID int64, subject string) *model.MistakeQuestion {
	t.Helper()

	mistake, err := svc.CreateMistake(context.Background(), ownerID, &MistakeCreateRequest{
		Title:   "测试错题",
		Subject: subject,
	})
	if err != nil {
		t.Fatalf("创建错题失败: %v", err)
	}
	return mistake
}
