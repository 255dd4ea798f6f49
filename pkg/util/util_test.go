package util

import (
	"strings"
	"testing"
)

// ============ 密码哈希测试 ============

func TestHashPassword(t *testing.T) {
	password := "secret1"

	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("哈希失败: %v", err)
	}
	if !strings.HasPrefix(hashed, "$2") {
		t.Errorf("哈希格式错误: %s", hashed)
	}

	// 相同密码应生成不同哈希（随机盐）
	hashed2, _ := HashPassword(password)
	if hashed == hashed2 {
		t.Error("相同密码应生成不同哈希")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "secret1"
	hashed, _ := HashPassword(password)

	if !CheckPassword(password, hashed) {
		t.Error("正确密码验证失败")
	}
	if CheckPassword("wrong", hashed) {
		t.Error("错误密码不应通过验证")
	}
	if CheckPassword(password, "invalid-format") {
		t.Error("无效哈希不应通过验证")
	}
}

// ============ 分享令牌测试 ============

func TestGenerateShareToken(t *testing.T) {
	token := GenerateShareToken()

	// 16 字节无填充 base64 编码为 22 个字符
	if len(token) != 22 {
		t.Errorf("令牌长度应为 22, 实际 %d", len(token))
	}
	// URL 安全编码不含 + / =
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("令牌应为 URL 安全编码: %s", token)
	}

	// 不应重复
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tk := GenerateShareToken()
		if seen[tk] {
			t.Fatalf("令牌重复: %s", tk)
		}
		seen[tk] = true
	}
}

// ============ data URI 测试 ============

func TestDecodeDataURI(t *testing.T) {
	data := []byte("hello scratch")
	uri := EncodeDataURI("application/x.scratch.sb3", data)

	mime, decoded, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if mime != "application/x.scratch.sb3" {
		t.Errorf("MIME 类型错误: %s", mime)
	}
	if string(decoded) != string(data) {
		t.Errorf("数据不一致: %q", decoded)
	}
}

func TestDecodeDataURIBare(t *testing.T) {
	// 兼容不带前缀的裸 base64
	mime, decoded, err := DecodeDataURI("aGVsbG8=")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if mime != "" {
		t.Errorf("裸 base64 的 MIME 应为空: %s", mime)
	}
	if string(decoded) != "hello" {
		t.Errorf("数据不一致: %q", decoded)
	}
}

func TestDecodeDataURIInvalid(t *testing.T) {
	if _, _, err := DecodeDataURI("data:image/png;base64"); err == nil {
		t.Error("缺少逗号的 data URI 应返回错误")
	}
	if _, _, err := DecodeDataURI("data:image/png;base64,!!!!"); err == nil {
		t.Error("非法 base64 应返回错误")
	}
}

// ============ 图片类型测试 ============

func TestImageExtFromMIME(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
		"image/gif":  "gif",
		"image/tiff": "jpg", // 未识别类型回退 jpg
		"":           "jpg",
	}
	for mime, want := range cases {
		if got := ImageExtFromMIME(mime); got != want {
			t.Errorf("ImageExtFromMIME(%q) = %q, 期望 %q", mime, got, want)
		}
	}
}

func TestImageMIMEFromPath(t *testing.T) {
	cases := map[string]string{
		"mistakes/1/2/image_0.png":  "image/png",
		"mistakes/1/2/image_1.webp": "image/webp",
		"mistakes/1/2/image_2.gif":  "image/gif",
		"mistakes/1/2/image_3.jpg":  "image/jpeg",
		"mistakes/1/2/image_4":      "image/jpeg", // 无扩展名回退 jpeg
	}
	for path, want := range cases {
		if got := ImageMIMEFromPath(path); got != want {
			t.Errorf("ImageMIMEFromPath(%q) = %q, 期望 %q", path, got, want)
		}
	}
}

// ============ 字符串工具测试 ============

func TestTruncateString(t *testing.T) {
	if got := TruncateString("hello", 10); got != "hello" {
		t.Errorf("短字符串不应截断: %q", got)
	}
	if got := TruncateString("hello world", 8); got != "hello..." {
		t.Errorf("截断结果错误: %q", got)
	}
	if got := TruncateString("hello", 3); got != "hel" {
		t.Errorf("极短限制截断错误: %q", got)
	}
}
