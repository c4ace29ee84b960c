package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		headers     map[string]string
		wantStatus  int
		wantOrigin  string
		wantHeaders map[string]string
		wantVary    []string
	}{
		{
			name:       "disabled",
			cfg:        CORSConfig{},
			method:     http.MethodPost,
			headers:    map[string]string{"Origin": "https://shop.example"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wildcard",
			cfg:        CORSConfig{AllowOrigins: []string{"*"}},
			method:     http.MethodPost,
			headers:    map[string]string{"Origin": "https://shop.example"},
			wantStatus: http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "listed origin keeps configured case",
			cfg:        CORSConfig{AllowOrigins: []string{"https://Shop.example"}, ExposeHeaders: []string{RequestIDHeader}},
			method:     http.MethodPost,
			headers:    map[string]string{"Origin": "https://shop.example"},
			wantStatus: http.StatusOK,
			wantOrigin: "https://Shop.example",
			wantHeaders: map[string]string{
				"Access-Control-Expose-Headers": RequestIDHeader,
			},
			wantVary: []string{"Origin"},
		},
		{
			name:       "unlisted origin",
			cfg:        CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			method:     http.MethodPost,
			headers:    map[string]string{"Origin": "https://evil.example"},
			wantStatus: http.StatusOK,
			wantVary:   []string{"Origin"},
		},
		{
			name:   "credentials echo origin instead of wildcard",
			cfg:    CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true},
			method: http.MethodPost,
			headers: map[string]string{
				"Origin": "https://shop.example",
			},
			wantStatus: http.StatusOK,
			wantOrigin: "https://shop.example",
			wantHeaders: map[string]string{
				"Access-Control-Allow-Credentials": "true",
			},
		},
		{
			name:   "preflight",
			cfg:    CORSConfig{AllowOrigins: []string{"https://shop.example"}, MaxAge: 600},
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                         "https://shop.example",
				"Access-Control-Request-Method":  http.MethodPost,
				"Access-Control-Request-Headers": "Content-Type",
			},
			wantStatus: http.StatusNoContent,
			wantOrigin: "https://shop.example",
			wantHeaders: map[string]string{
				"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
				"Access-Control-Allow-Headers": "Content-Type",
				"Access-Control-Max-Age":       "600",
			},
			wantVary: []string{"Origin", "Access-Control-Request-Method", "Access-Control-Request-Headers"},
		},
		{
			name:   "preflight from unlisted origin",
			cfg:    CORSConfig{AllowOrigins: []string{"https://shop.example"}},
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                        "https://evil.example",
				"Access-Control-Request-Method": http.MethodPost,
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/cart/applicable-coupons", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			CORS(tt.cfg)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			for k, v := range tt.wantHeaders {
				assert.Equal(t, v, rec.Header().Get(k), k)
			}
			if tt.wantVary != nil {
				assert.Equal(t, tt.wantVary, rec.Header().Values("Vary"))
			}
		})
	}
}
