package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scratch-edu-server/internal/model"
	"scratch-edu-server/internal/repository"
	"scratch-edu-server/internal/service"
	"scratch-edu-server/internal/storage"
)

// newTestProjectHandler 创建项目处理器和测试数据
func newTestProjectHandler(t *testing.T) (*ProjectHandler, *service.ProjectService, int64) {
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

	if err := db.AutoMigrate(&model.User{}, &model.Project{}); err != nil {
		t.Fatalf("迁移表失败: %v", err)
	}

	owner := &model.User{Username: "alice", PasswordHash: "x", Role: model.RoleUser, IsActive: true}
	if err := db.Create(owner).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}

	projectService := service.NewProjectService(repository.NewProjectRepository(db), storage.NewMemoryStore())
	return NewProjectHandler(projectService), projectService, owner.ID
}

func TestShareResponseContainsURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, svc, ownerID := newTestProjectHandler(t)

	created, err := svc.CreateProject(context.Background(), ownerID, &service.ProjectCreateRequest{Title: "分享测试"})
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", fmt.Sprintf("/api/projects/%d/share", created.ID), nil)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", created.ID)}}
	c.Set("user_id", ownerID)

	h.Share(c)

	if w.Code != 200 {
		t.Fatalf("状态码应为 200, 实际 %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Code int `json:"code"`
		Data struct {
			ShareToken string `json:"share_token"`
			ShareURL   string `json:"share_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if body.Code != 0 {
		t.Errorf("业务状态码应为 0, 实际 %d", body.Code)
	}
	if body.Data.ShareToken == "" {
		t.Fatal("响应应包含分享令牌")
	}
	// 分享链接由令牌派生
	if want := "/share/" + body.Data.ShareToken; body.Data.ShareURL != want {
		t.Errorf("分享链接应为 %s, 实际 %s", want, body.Data.ShareURL)
	}
}
