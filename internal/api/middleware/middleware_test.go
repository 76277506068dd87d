package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"researchhub/backend/config"
	"researchhub/backend/internal/model"
	"researchhub/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func okHandler(c *gin.Context) { c.String(http.StatusOK, "ok") }

// ── JWTAuth ──

func TestJWTAuth_InjectsClaims(t *testing.T) {
	mgr := newTestJWT()
	token, err := mgr.GenerateAccessToken("user-1", "tk001", "ASSISTANT", "dept-1")
	if err != nil {
		t.Fatalf("生成 Token 应成功: %v", err)
	}

	var gotRole, gotDept, gotJTI string
	var gotExp time.Time
	r := gin.New()
	r.GET("/me", JWTAuth(mgr, nil, zap.NewNop()), func(c *gin.Context) {
		gotRole = c.GetString("role")
		gotDept = c.GetString("department_id")
		gotJTI = c.GetString("token_id")
		gotExp = c.GetTime("token_expires_at")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d", w.Code)
	}
	if gotRole != "ASSISTANT" || gotDept != "dept-1" {
		t.Errorf("上下文注入不符合预期: role=%s dept=%s", gotRole, gotDept)
	}
	if gotJTI == "" || gotExp.IsZero() {
		t.Error("应注入 token_id 与 token_expires_at")
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"Missing", ""},
		{"NotBearer", "Basic abc"},
		{"Garbage", "Bearer not-a-token"},
	}

	mgr := newTestJWT()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/me", JWTAuth(mgr, nil, zap.NewNop()), okHandler)

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("期望 401，实际=%d", w.Code)
			}
		})
	}
}

// ── RoleAuth ──

func TestRoleAuth(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{"Allowed", "ADMIN", http.StatusOK},
		{"AlsoAllowed", "ASSISTANT", http.StatusOK},
		{"Forbidden", "STUDENT", http.StatusForbidden},
		{"NoRole", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/staff", func(c *gin.Context) {
				if tt.role != "" {
					c.Set("role", tt.role)
				}
			}, RoleAuth(model.RoleAdmin, model.RoleAssistant), okHandler)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/staff", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("期望 %d，实际=%d", tt.wantStatus, w.Code)
			}
		})
	}
}

// ── RateLimit ──

func TestRateLimit_LocalFallback(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimit(nil, "login", 2, time.Minute), okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("前两次请求应放行，实际=%v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("第三次请求期望 429，实际=%d", codes[2])
	}
}

func TestRateLimit_StackedScopesUseDistinctKeys(t *testing.T) {
	var keys []string
	record := func(scope string) gin.HandlerFunc {
		return func(c *gin.Context) { keys = append(keys, rateLimitKey(scope, c)) }
	}
	r := gin.New()
	r.Use(record("api"))
	r.POST("/api/v1/auth/login", record("login"), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/auth/login", nil))

	if len(keys) != 2 || keys[0] == keys[1] {
		t.Errorf("全局限流与登录限流应使用不同的计数键，实际=%v", keys)
	}
	if !strings.HasPrefix(keys[1], "login:") {
		t.Errorf("登录限流键应带 login 前缀，实际=%s", keys[1])
	}
}

// 叠加的两个限流器各自计数，登录配额不被全局限流器消耗
func TestRateLimit_StackedLimitersCountSeparately(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil, "api", 100, time.Minute))
	r.POST("/login", RateLimit(nil, "login", 3, time.Minute), okHandler)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("第 %d 次登录请求应放行，实际=%d", i+1, w.Code)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("超出登录配额期望 429，实际=%d", w.Code)
	}
}

func TestLocalLimiter_KeysIndependent(t *testing.T) {
	l := newLocalLimiter(1, time.Minute)

	if !l.allow("a") || !l.allow("b") {
		t.Error("不同 key 应各自计数")
	}
	if l.allow("a") {
		t.Error("同一 key 超出配额应被拒绝")
	}
}

// ── BodyLimit ──

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/echo", BodyLimit(8, 64), okHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/echo", strings.NewReader(strings.Repeat("x", 16)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("JSON 请求超限期望 413，实际=%d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/echo", strings.NewReader(strings.Repeat("x", 16)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("上传请求使用更大的限额，期望 200，实际=%d", w.Code)
	}
}

// ── RequestID / SecurityHeaders ──

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.GET("/ping", RequestID(), func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if seen != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("应沿用请求头中的 ID，实际=%s", seen)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 100))
	r.ServeHTTP(w, req)
	if len(seen) != 36 {
		t.Errorf("超长 ID 应被替换为 UUID，实际=%s", seen)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/ping", SecurityHeaders(), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("缺少 X-Content-Type-Options")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("非 TLS 请求不应设置 HSTS")
	}
}
