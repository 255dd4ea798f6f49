// Package util 提供通用工具函数
package util

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword 使用 bcrypt 哈希密码
// bcrypt 是一种专门为密码哈希设计的算法，自动添加盐值
// 参数:
//   - password: 明文密码
//
// 返回:
//   - string: 密码哈希值
//   - error: 哈希错误
func HashPassword(password string) (string, error) {
	// bcrypt.DefaultCost 是默认的计算成本（10）
	// 成本越高，计算越慢，安全性越高
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 验证密码是否匹配
// 参数:
//   - password: 用户输入的明文密码
//   - hash: 数据库中存储的哈希值
//
// 返回:
//   - bool: 是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateShareToken 生成分享令牌
// 16 字节随机数据，URL 安全的 base64 编码（无填充）
// 返回:
//   - string: 分享令牌，如 "5zty6EJ1fZkzvYm3jANK0g"
func GenerateShareToken() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// DecodeDataURI 解析 data URI
// 格式: data:<mime>;base64,<数据>
// 也兼容不带前缀的裸 base64 字符串（此时 mime 为空）
// 参数:
//   - s: data URI 字符串
//
// 返回:
//   - string: MIME 类型
//   - []byte: 解码后的二进制数据
//   - error: 格式或解码错误
func DecodeDataURI(s string) (string, []byte, error) {
	mime := ""
	payload := s

	if strings.HasPrefix(s, "data:") {
		head, rest, found := strings.Cut(s, ",")
		if !found {
			return "", nil, errors.New("invalid data URI: missing comma")
		}
		payload = rest

		// head 形如 data:application/x.scratch.sb3;base64
		head = strings.TrimPrefix(head, "data:")
		mime = strings.TrimSuffix(head, ";base64")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, data, nil
}

// EncodeDataURI 将二进制数据编码为 data URI
// 参数:
//   - mime: MIME 类型
//   - data: 二进制数据
//
// 返回:
//   - string: data URI 字符串
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// imageExtByMIME MIME 类型到文件扩展名的映射
// 未识别的类型回退为 jpg
var imageExtByMIME = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// ImageExtFromMIME 根据 MIME 类型推断图片扩展名
// 未识别的类型返回默认值 "jpg"
func ImageExtFromMIME(contentType string) string {
	if ext, ok := imageExtByMIME[contentType]; ok {
		return ext
	}
	return "jpg"
}

// ImageMIMEFromPath 根据存储路径的扩展名推断 MIME 类型
// 回放图片时以扩展名为唯一依据，不依赖存储的元数据
func ImageMIMEFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// TruncateString 截断字符串到指定长度
// 如果字符串超过指定长度，截断并添加 "..."
// 参数:
//   - s: 原字符串
//   - maxLen: 最大长度
//
// 返回:
//   - string: 截断后的字符串
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// StringPtr 返回字符串的指针
// 用于可选字段的赋值
func StringPtr(s string) *string {
	return &s
}

// BoolPtr 返回 bool 的指针
func BoolPtr(b bool) *bool {
	return &b
}
