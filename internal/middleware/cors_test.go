// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    string
		origin     string
		method     string
		preflight  bool
		wantOrigin string
		wantStatus int
	}{
		{"wildcard echoes origin", "*", "https://app.example.com", http.MethodGet, false, "https://app.example.com", http.StatusOK},
		{"listed origin", "https://a.example.com, https://b.example.com", "https://b.example.com", http.MethodGet, false, "https://b.example.com", http.StatusOK},
		{"case-insensitive match", "https://A.example.com", "https://a.example.com", http.MethodGet, false, "https://a.example.com", http.StatusOK},
		{"unlisted origin", "https://a.example.com", "https://evil.example.com", http.MethodGet, false, "", http.StatusOK},
		{"no origin header", "*", "", http.MethodGet, false, "", http.StatusOK},
		{"preflight", "*", "https://app.example.com", http.MethodOptions, true, "https://app.example.com", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/tasks", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.preflight && rec.Header().Get("Access-Control-Allow-Headers") == "" {
				t.Error("preflight response missing Access-Control-Allow-Headers")
			}
		})
	}
}
