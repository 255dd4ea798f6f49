package jwt

import (
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-32-characters!!"

func newTestService() *JWTService {
	return NewJWTService(testSecret, time.Hour, 24*time.Hour)
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken(42, "alice")
	if err != nil {
		t.Fatalf("生成 Token 失败: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("验证 Token 失败: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID 错误: %d", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("Username 错误: %s", claims.Username)
	}
	if claims.Subject != "access" {
		t.Errorf("Subject 应为 access: %s", claims.Subject)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := newTestService()
	other := NewJWTService("another-secret-also-32-characters!!!", time.Hour, 24*time.Hour)

	token, _ := svc.GenerateAccessToken(1, "alice")
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("不同密钥签名的 Token 不应通过验证")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	// 过期时间为负值，生成即过期
	svc := NewJWTService(testSecret, -time.Minute, 24*time.Hour)

	token, _ := svc.GenerateAccessToken(1, "alice")
	if _, err := svc.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("过期 Token 应返回 ErrExpiredToken, 实际 %v", err)
	}
}

func TestValidateInvalidToken(t *testing.T) {
	svc := newTestService()

	if _, err := svc.ValidateToken("not-a-jwt"); err != ErrInvalidToken {
		t.Errorf("非法 Token 应返回 ErrInvalidToken, 实际 %v", err)
	}
}

func TestValidateRefreshToken(t *testing.T) {
	svc := newTestService()

	refresh, _ := svc.GenerateRefreshToken(7, "bob")
	claims, err := svc.ValidateRefreshToken(refresh)
	if err != nil {
		t.Fatalf("验证 Refresh Token 失败: %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("UserID 错误: %d", claims.UserID)
	}

	// Access Token 不能当 Refresh Token 用
	access, _ := svc.GenerateAccessToken(7, "bob")
	if _, err := svc.ValidateRefreshToken(access); err != ErrInvalidToken {
		t.Errorf("Access Token 不应通过 Refresh 验证, 实际 %v", err)
	}
}
