package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"scratch-edu-server/internal/model"
	"scratch-edu-server/internal/repository"
)

// ============ 创建与校验测试 ============

func TestCreateMistakeValidation(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	// 非法学科
	_, err := svc.CreateMistake(ctx, owner.ID, &MistakeCreateRequest{
		Title:   "错题",
		Subject: "astrology",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("非法学科应返回 ErrInvalidInput, 实际 %v", err)
	}

	// 非法难度
	_, err = svc.CreateMistake(ctx, owner.ID, &MistakeCreateRequest{
		Title:      "错题",
		Subject:    model.SubjectMath,
		Difficulty: "impossible",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("非法难度应返回 ErrInvalidInput, 实际 %v", err)
	}

	// 难度缺省为 medium
	mistake, err := svc.CreateMistake(ctx, owner.ID, &MistakeCreateRequest{
		Title:   "错题",
		Subject: model.SubjectMath,
		Tags:    []string{"一元二次方程"},
	})
	if err != nil {
		t.Fatalf("创建错题失败: %v", err)
	}
	if mistake.Difficulty != model.DifficultyMedium {
		t.Errorf("缺省难度应为 medium, 实际 %s", mistake.Difficulty)
	}
	if len(mistake.ImagePaths) != 0 {
		t.Errorf("新建错题图片列表应为空, 实际 %v", mistake.ImagePaths)
	}
}

func TestUpdateMistakePartial(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)

	mastered := true
	updated, err := svc.UpdateMistake(ctx, owner.ID, rawID, &MistakeUpdateRequest{
		IsMastered: &mastered,
	})
	if err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if !updated.IsMastered {
		t.Error("掌握状态未更新")
	}
	if updated.Title != "测试错题" {
		t.Errorf("缺省字段不应被修改: %s", updated.Title)
	}

	// 非法学科更新被拒绝
	bad := "astrology"
	_, err = svc.UpdateMistake(ctx, owner.ID, rawID, &MistakeUpdateRequest{Subject: &bad})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("非法学科应返回 ErrInvalidInput, 实际 %v", err)
	}
}

// ============ 列表与统计测试 ============

func TestListMistakesFilters(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	math, _ := svc.CreateMistake(ctx, owner.ID, &MistakeCreateRequest{
		Title: "数学题", Subject: model.SubjectMath, Tags: []string{"函数", "导数"},
	})
	svc.CreateMistake(ctx, owner.ID, &MistakeCreateRequest{
		Title: "英语题", Subject: model.SubjectEnglish, Tags: []string{"时态"},
	})

	mastered := true
	svc.UpdateMistake(ctx, owner.ID, fmt.Sprintf("%d", math.ID), &MistakeUpdateRequest{IsMastered: &mastered})

	// 按学科筛选
	list, err := svc.ListMistakes(ctx, owner.ID, repository.MistakeFilter{Subject: model.SubjectMath})
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	if len(list) != 1 || list[0].Subject != model.SubjectMath {
		t.Errorf("学科筛选结果错误: %d 条", len(list))
	}

	// 按标签筛选
	list, err = svc.ListMistakes(ctx, owner.ID, repository.MistakeFilter{Tag: "导数"})
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	if len(list) != 1 || list[0].ID != math.ID {
		t.Errorf("标签筛选结果错误: %d 条", len(list))
	}

	// 按掌握状态筛选
	notMastered := false
	list, err = svc.ListMistakes(ctx, owner.ID, repository.MistakeFilter{IsMastered: &notMastered})
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	if len(list) != 1 || list[0].Subject != model.SubjectEnglish {
		t.Errorf("掌握状态筛选结果错误: %d 条", len(list))
	}

	// 非法学科筛选被拒绝
	if _, err := svc.ListMistakes(ctx, owner.ID, repository.MistakeFilter{Subject: "astrology"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("非法学科筛选应返回 ErrInvalidInput, 实际 %v", err)
	}
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	other := newTestUser(t, db, "bob")
	ctx := context.Background()

	m1 := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	createTestMistake(t, svc, owner.ID, model.SubjectMath)
	createTestMistake(t, svc, owner.ID, model.SubjectEnglish)
	createTestMistake(t, svc, other.ID, model.SubjectPhysics) // 他人错题不计入

	mastered := true
	svc.UpdateMistake(ctx, owner.ID, fmt.Sprintf("%d", m1.ID), &MistakeUpdateRequest{IsMastered: &mastered})

	stats, err := svc.GetStats(ctx, owner.ID)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("总数应为 3, 实际 %d", stats.Total)
	}
	if stats.Mastered != 1 {
		t.Errorf("已掌握应为 1, 实际 %d", stats.Mastered)
	}
	if stats.NeedReview != 2 {
		t.Errorf("待复习应为 2, 实际 %d", stats.NeedReview)
	}
	if stats.BySubject[model.SubjectMath] != 2 || stats.BySubject[model.SubjectEnglish] != 1 {
		t.Errorf("学科统计错误: %v", stats.BySubject)
	}
	// 无错题的学科不出现
	if _, ok := stats.BySubject[model.SubjectPhysics]; ok {
		t.Error("无错题的学科不应出现在统计中")
	}
}

// ============ 图片附件测试 ============

func TestAttachImage(t *testing.T) {
	db := newTestDB(t)
	svc, store := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)

	// 第一张 jpeg，第二张 png，路径按顺序编号
	updated, err := svc.AttachImage(ctx, owner.ID, rawID, []byte("jpeg-data"), "image/jpeg")
	if err != nil {
		t.Fatalf("上传图片失败: %v", err)
	}
	updated, err = svc.AttachImage(ctx, owner.ID, rawID, []byte("png-data"), "image/png")
	if err != nil {
		t.Fatalf("上传图片失败: %v", err)
	}

	if len(updated.ImagePaths) != 2 {
		t.Fatalf("应有 2 张图片, 实际 %d", len(updated.ImagePaths))
	}
	want0 := fmt.Sprintf("mistakes/%d/%d/image_0.jpg", owner.ID, mistake.ID)
	want1 := fmt.Sprintf("mistakes/%d/%d/image_1.png", owner.ID, mistake.ID)
	if updated.ImagePaths[0] != want0 || updated.ImagePaths[1] != want1 {
		t.Errorf("图片路径错误: %v", updated.ImagePaths)
	}
	if store.Len() != 2 {
		t.Errorf("存储对象数应为 2, 实际 %d", store.Len())
	}
}

func TestAttachImageRejected(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)

	// 非图片类型
	if _, err := svc.AttachImage(ctx, owner.ID, rawID, []byte("pdf"), "application/pdf"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("非图片类型应返回 ErrInvalidInput, 实际 %v", err)
	}

	// 超过大小限制
	huge := make([]byte, maxImageSize+1)
	if _, err := svc.AttachImage(ctx, owner.ID, rawID, huge, "image/jpeg"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("超限图片应返回 ErrInvalidInput, 实际 %v", err)
	}
}

func TestGetImage(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)
	svc.AttachImage(ctx, owner.ID, rawID, []byte("png-data"), "image/png")

	data, contentType, err := svc.GetImage(ctx, owner.ID, rawID, 0)
	if err != nil {
		t.Fatalf("获取图片失败: %v", err)
	}
	if string(data) != "png-data" {
		t.Errorf("图片数据不一致: %q", data)
	}
	if contentType != "image/png" {
		t.Errorf("MIME 类型应由扩展名推断为 image/png, 实际 %s", contentType)
	}

	// 下标越界
	if _, _, err := svc.GetImage(ctx, owner.ID, rawID, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("越界下标应返回 ErrNotFound, 实际 %v", err)
	}
	if _, _, err := svc.GetImage(ctx, owner.ID, rawID, -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("负数下标应返回 ErrNotFound, 实际 %v", err)
	}
}

// ============ AI 提取测试 ============

func TestExtractFromImage(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)

	// 未上传图片
	if _, err := svc.ExtractFromImage(ctx, owner.ID, rawID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("无图片应返回 ErrInvalidInput, 实际 %v", err)
	}

	// 有图片但 AI 未配置
	svc.AttachImage(ctx, owner.ID, rawID, []byte("jpeg-data"), "image/jpeg")
	if _, err := svc.ExtractFromImage(ctx, owner.ID, rawID); !errors.Is(err, ErrAIUnavailable) {
		t.Errorf("AI 未配置应返回 ErrAIUnavailable, 实际 %v", err)
	}
}

// ============ 复习与删除测试 ============

func TestMarkReviewed(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)

	updated, err := svc.MarkReviewed(ctx, owner.ID, rawID)
	if err != nil {
		t.Fatalf("记录复习失败: %v", err)
	}
	if updated.ReviewCount != 1 {
		t.Errorf("复习次数应为 1, 实际 %d", updated.ReviewCount)
	}
	if updated.LastReviewAt == nil {
		t.Error("复习时间未记录")
	}

	updated, _ = svc.MarkReviewed(ctx, owner.ID, rawID)
	if updated.ReviewCount != 2 {
		t.Errorf("复习次数应为 2, 实际 %d", updated.ReviewCount)
	}
	// 复习不改变掌握状态
	if updated.IsMastered {
		t.Error("复习不应修改掌握状态")
	}
}

func TestDeleteMistakeRemovesImages(t *testing.T) {
	db := newTestDB(t)
	svc, store := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)
	svc.AttachImage(ctx, owner.ID, rawID, []byte("a"), "image/jpeg")
	svc.AttachImage(ctx, owner.ID, rawID, []byte("b"), "image/png")

	if err := svc.DeleteMistake(ctx, owner.ID, rawID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("删除后图片应清空, 实际剩余 %d", store.Len())
	}
	if _, err := svc.GetMistake(ctx, owner.ID, rawID); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后访问应返回 ErrNotFound, 实际 %v", err)
	}
}

func TestMistakeOwnership(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bob")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, alice.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)

	if _, err := svc.GetMistake(ctx, bob.ID, rawID); !errors.Is(err, ErrForbidden) {
		t.Errorf("访问他人错题应返回 ErrForbidden, 实际 %v", err)
	}
	if err := svc.DeleteMistake(ctx, bob.ID, rawID); !errors.Is(err, ErrForbidden) {
		t.Errorf("删除他人错题应返回 ErrForbidden, 实际 %v", err)
	}
}

// ============ PDF 导出测试 ============

func TestExportPDF(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	// 无错题时导出失败
	if _, err := svc.ExportPDF(ctx, owner.ID, repository.MistakeFilter{}, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("空结果导出应返回 ErrNotFound, 实际 %v", err)
	}

	svc.CreateMistake(ctx, owner.ID, &MistakeCreateRequest{
		Title:           "一元二次方程求根",
		Subject:         model.SubjectMath,
		QuestionContent: "解方程 x²-5x+6=0",
		AnswerContent:   "x=2 或 x=3",
		MyAnswer:        "x=1",
		Analysis:        "因式分解 (x-2)(x-3)=0",
		Tags:            []string{"一元二次方程", "因式分解"},
		Notes:           "下次注意检查因式分解结果",
	})

	pdf, err := svc.ExportPDF(ctx, owner.ID, repository.MistakeFilter{}, true)
	if err != nil {
		t.Fatalf("导出 PDF 失败: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("输出不是合法 PDF")
	}
}

func TestExportPDFWithoutImages(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestMistakeService(t, db)
	owner := newTestUser(t, db, "alice")
	ctx := context.Background()

	mistake := createTestMistake(t, svc, owner.ID, model.SubjectMath)
	rawID := fmt.Sprintf("%d", mistake.ID)

	// 附件不是合法图片，只有跳过图片渲染才能导出成功
	if _, err := svc.AttachImage(ctx, owner.ID, rawID, []byte("not-a-real-jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("上传图片失败: %v", err)
	}

	pdf, err := svc.ExportPDF(ctx, owner.ID, repository.MistakeFilter{}, false)
	if err != nil {
		t.Fatalf("不含图片导出失败: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("输出不是合法 PDF")
	}
}
