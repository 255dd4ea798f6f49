package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"scratch-edu-server/pkg/util"
)

// sb3URI 构造项目包的 data URI
func sb3URI(data string) string {
	return util.EncodeDataURI(sb3ContentType, []byte(data))
}

// ============ 创建与读取测试 ============

func TestCreateProjectWithData(t *testing.T) {
	db := newTestDB(t)
	svc, store := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	detail, err := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{
		Title: "我的第一个项目",
		Data:  map[string]string{"sb3": sb3URI("sb3-bytes")},
	})
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}

	if detail.Title != "我的第一个项目" {
		t.Errorf("标题错误: %s", detail.Title)
	}
	if detail.StoragePath == nil {
		t.Fatal("带数据创建后存储路径不应为空")
	}
	want := fmt.Sprintf("projects/%d/project.sb3", detail.ID)
	if *detail.StoragePath != want {
		t.Errorf("存储路径错误: %s", *detail.StoragePath)
	}

	// 对象存储中应能读到原始数据
	data, _ := store.Get(ctx, want)
	if string(data) != "sb3-bytes" {
		t.Errorf("存储数据不一致: %q", data)
	}
}

func TestCreateProjectDefaultTitle(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")

	detail, err := svc.CreateProject(context.Background(), owner.ID, &ProjectCreateRequest{})
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}
	if detail.Title != "未命名项目" {
		t.Errorf("缺省标题错误: %s", detail.Title)
	}
	if detail.StoragePath != nil {
		t.Error("未上传数据时存储路径应为空")
	}
}

func TestGetProjectRoundTrip(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	created, _ := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{
		Data: map[string]string{"sb3": sb3URI("roundtrip")},
	})

	detail, err := svc.GetProject(ctx, owner.ID, fmt.Sprintf("%d", created.ID))
	if err != nil {
		t.Fatalf("获取项目失败: %v", err)
	}
	mime, payload, err := util.DecodeDataURI(detail.Data["sb3"])
	if err != nil {
		t.Fatalf("返回的数据不是合法 data URI: %v", err)
	}
	if mime != sb3ContentType {
		t.Errorf("MIME 类型错误: %s", mime)
	}
	if string(payload) != "roundtrip" {
		t.Errorf("数据不一致: %q", payload)
	}
}

// ============ 归属校验测试 ============

func TestGetProjectOwnership(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestProjectService(t, db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	ctx := context.Background()

	created, _ := svc.CreateProject(ctx, alice.ID, &ProjectCreateRequest{Title: "alice 的项目"})
	rawID := fmt.Sprintf("%d", created.ID)

	// 非法 ID 与不存在统一返回 ErrNotFound
	if _, err := svc.GetProject(ctx, alice.ID, "not-a-number"); !errors.Is(err, ErrNotFound) {
		t.Errorf("非法 ID 应返回 ErrNotFound, 实际 %v", err)
	}
	if _, err := svc.GetProject(ctx, alice.ID, "99999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("不存在的 ID 应返回 ErrNotFound, 实际 %v", err)
	}

	// 他人项目返回 ErrForbidden
	if _, err := svc.GetProject(ctx, bob.ID, rawID); !errors.Is(err, ErrForbidden) {
		t.Errorf("访问他人项目应返回 ErrForbidden, 实际 %v", err)
	}

	// 本人正常访问
	if _, err := svc.GetProject(ctx, alice.ID, rawID); err != nil {
		t.Errorf("本人访问失败: %v", err)
	}
}

// ============ 部分更新测试 ============

func TestUpdateProjectPatchSemantics(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	desc := "原始描述"
	created, _ := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{
		Title:       "原标题",
		Description: &desc,
	})
	rawID := fmt.Sprintf("%d", created.ID)

	// 只改标题，描述应保持不变
	var req ProjectUpdateRequest
	if err := json.Unmarshal([]byte(`{"title":"新标题"}`), &req); err != nil {
		t.Fatalf("解析请求失败: %v", err)
	}
	updated, err := svc.UpdateProject(ctx, owner.ID, rawID, &req)
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if updated.Title != "新标题" {
		t.Errorf("标题未更新: %s", updated.Title)
	}
	if updated.Description == nil || *updated.Description != "原始描述" {
		t.Error("缺省字段不应被修改")
	}

	// 显式传 null 应清空描述
	var req2 ProjectUpdateRequest
	if err := json.Unmarshal([]byte(`{"description":null}`), &req2); err != nil {
		t.Fatalf("解析请求失败: %v", err)
	}
	updated, err = svc.UpdateProject(ctx, owner.ID, rawID, &req2)
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if updated.Description != nil {
		t.Errorf("显式 null 应清空描述, 实际 %q", *updated.Description)
	}
	if updated.Title != "新标题" {
		t.Errorf("标题不应被第二次更新改动: %s", updated.Title)
	}
}

func TestUpdateProjectOverwritesData(t *testing.T) {
	db := newTestDB(t)
	svc, store := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	created, _ := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{
		Data: map[string]string{"sb3": sb3URI("v1")},
	})
	rawID := fmt.Sprintf("%d", created.ID)

	var req ProjectUpdateRequest
	body := fmt.Sprintf(`{"data":{"sb3":%q}}`, sb3URI("v2"))
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("解析请求失败: %v", err)
	}
	if _, err := svc.UpdateProject(ctx, owner.ID, rawID, &req); err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	// 同一路径直接覆盖，不产生新对象
	data, _ := store.Get(ctx, *created.StoragePath)
	if string(data) != "v2" {
		t.Errorf("数据未覆盖: %q", data)
	}
	if store.Len() != 1 {
		t.Errorf("应只有 1 个存储对象, 实际 %d", store.Len())
	}
}

func TestUpdateProjectDataRefreshesTimestamp(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	created, _ := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{
		Data: map[string]string{"sb3": sb3URI("v1")},
	})
	rawID := fmt.Sprintf("%d", created.ID)

	before, _ := svc.GetProject(ctx, owner.ID, rawID)
	time.Sleep(10 * time.Millisecond)

	// 只保存项目数据，不改任何元数据字段
	var req ProjectUpdateRequest
	body := fmt.Sprintf(`{"data":{"sb3":%q}}`, sb3URI("v2"))
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("解析请求失败: %v", err)
	}
	updated, err := svc.UpdateProject(ctx, owner.ID, rawID, &req)
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	// 列表按更新时间倒序，反复保存必须刷新时间戳
	if !updated.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("仅更新项目数据后更新时间未刷新: before=%v after=%v",
			before.UpdatedAt, updated.UpdatedAt)
	}

	reloaded, _ := svc.GetProject(ctx, owner.ID, rawID)
	if !reloaded.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("数据库中的更新时间未刷新: before=%v after=%v",
			before.UpdatedAt, reloaded.UpdatedAt)
	}
}

// ============ 分享测试 ============

func TestShareProjectIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	created, _ := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{Title: "分享测试"})
	rawID := fmt.Sprintf("%d", created.ID)

	token1, err := svc.ShareProject(ctx, owner.ID, rawID)
	if err != nil {
		t.Fatalf("分享失败: %v", err)
	}
	if token1 == "" {
		t.Fatal("分享令牌不应为空")
	}

	// 重复分享返回同一令牌
	token2, _ := svc.ShareProject(ctx, owner.ID, rawID)
	if token1 != token2 {
		t.Errorf("重复分享应返回同一令牌: %s != %s", token1, token2)
	}
}

func TestUnshareProjectClearsToken(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	created, _ := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{Title: "分享测试"})
	rawID := fmt.Sprintf("%d", created.ID)

	token, _ := svc.ShareProject(ctx, owner.ID, rawID)
	if err := svc.UnshareProject(ctx, owner.ID, rawID); err != nil {
		t.Fatalf("取消分享失败: %v", err)
	}

	// 公开标记与令牌一起清空
	detail, _ := svc.GetProject(ctx, owner.ID, rawID)
	if detail.IsPublic {
		t.Error("取消分享后不应是公开状态")
	}
	if detail.ShareToken != nil {
		t.Errorf("取消分享后令牌应清空: %s", *detail.ShareToken)
	}

	// 旧令牌立即失效
	if _, err := svc.GetSharedProject(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Errorf("失效令牌应返回 ErrNotFound, 实际 %v", err)
	}

	// 重新分享生成新令牌
	token2, _ := svc.ShareProject(ctx, owner.ID, rawID)
	if token2 == token {
		t.Error("重新分享不应复用旧令牌")
	}
}

func TestGetSharedProjectIncrementsViewCount(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	created, _ := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{
		Data: map[string]string{"sb3": sb3URI("shared")},
	})
	token, _ := svc.ShareProject(ctx, owner.ID, fmt.Sprintf("%d", created.ID))

	// 同一访客重复访问也累加
	for i := 0; i < 3; i++ {
		detail, err := svc.GetSharedProject(ctx, token)
		if err != nil {
			t.Fatalf("第 %d 次访问失败: %v", i+1, err)
		}
		if detail.ViewCount != int64(i+1) {
			t.Errorf("第 %d 次访问浏览次数应为 %d, 实际 %d", i+1, i+1, detail.ViewCount)
		}
		if detail.Data["sb3"] == "" {
			t.Error("分享详情应包含项目数据")
		}
	}
}

// ============ 删除测试 ============

func TestDeleteProjectRemovesBlob(t *testing.T) {
	db := newTestDB(t)
	svc, store := newTestProjectService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	created, _ := svc.CreateProject(ctx, owner.ID, &ProjectCreateRequest{
		Data: map[string]string{"sb3": sb3URI("bye")},
	})
	rawID := fmt.Sprintf("%d", created.ID)

	if err := svc.DeleteProject(ctx, owner.ID, rawID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("删除后存储对象应清空, 实际剩余 %d", store.Len())
	}
	if _, err := svc.GetProject(ctx, owner.ID, rawID); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后访问应返回 ErrNotFound, 实际 %v", err)
	}
}
