package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/provider"
	"github.com/asterdex-mlm/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode       int             `json:"status_code"`
	Msg              string          `json:"msg"`
	Kind             string          `json:"kind"`
	Data             json.RawMessage `json:"data"`
	AlreadyProcessed bool            `json:"already_processed"`
}

type ledgerEntryBody struct {
	ID          uint   `json:"id"`
	Amount      string `json:"amount"`
	ReferenceID string `json:"reference_id"`
	Remark      string `json:"remark"`
}

func setupAdminRouter(t *testing.T) (*gin.Engine, *provider.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:admin_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateSchema(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg, err := config.Decode(viper.New())
	if err != nil {
		t.Fatalf("decode config failed: %v", err)
	}
	container, err := provider.NewContainerWithDB(cfg, db)
	if err != nil {
		t.Fatalf("build container failed: %v", err)
	}

	h := New(container)
	r := gin.New()
	adminGroup := r.Group("/api/v1/admin")
	adminGroup.POST("/members/:id/wallet/adjust", h.AdjustMemberWallet)
	adminGroup.POST("/members/:id/wallet/lock", h.LockMemberFunds)
	return r, container
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) envelope {
	t.Helper()
	var payload bytes.Buffer
	if err := json.NewEncoder(&payload).Encode(body); err != nil {
		t.Fatalf("encode body failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST %s http status want 200 got %d", path, w.Code)
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope failed: %v body=%s", err, w.Body.String())
	}
	return env
}

func decodeEntry(t *testing.T, env envelope) ledgerEntryBody {
	t.Helper()
	var entry ledgerEntryBody
	if err := json.Unmarshal(env.Data, &entry); err != nil {
		t.Fatalf("unmarshal entry failed: %v data=%s", err, string(env.Data))
	}
	return entry
}

func TestAdjustMemberWalletReplayReturnsExistingEntry(t *testing.T) {
	r, container := setupAdminRouter(t)
	enrolled, err := container.MemberService.Enroll(context.Background(), service.EnrollInput{Username: "root"})
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	path := fmt.Sprintf("/api/v1/admin/members/%d/wallet/adjust", enrolled.Member.ID)
	body := gin.H{"amount": "50", "operation": "add", "reference": "adj-1"}

	first := postJSON(t, r, path, body)
	if first.StatusCode != response.CodeOK || first.AlreadyProcessed {
		t.Fatalf("first adjust should succeed fresh, got %+v", first)
	}
	created := decodeEntry(t, first)
	if created.ReferenceID != "adj-1" || created.Amount != "50.00" || created.Remark != "admin adjustment" {
		t.Fatalf("unexpected entry: %+v", created)
	}

	replay := postJSON(t, r, path, body)
	if replay.StatusCode != response.CodeOK || !replay.AlreadyProcessed || replay.Kind != "" {
		t.Fatalf("replay should succeed as already processed, got %+v", replay)
	}
	existing := decodeEntry(t, replay)
	if existing.ID != created.ID || existing.ReferenceID != "adj-1" {
		t.Fatalf("replay should return the existing entry, got %+v want id %d", existing, created.ID)
	}

	balance, err := container.WalletService.GetBalance(enrolled.Member.ID)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.Available.String() != "50.00" {
		t.Fatalf("replay must not credit twice, available=%s", balance.Available.String())
	}
}

func TestAdjustMemberWalletMapsErrorKinds(t *testing.T) {
	r, container := setupAdminRouter(t)
	enrolled, err := container.MemberService.Enroll(context.Background(), service.EnrollInput{Username: "root"})
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	path := fmt.Sprintf("/api/v1/admin/members/%d/wallet/adjust", enrolled.Member.ID)

	cases := []struct {
		name string
		path string
		body gin.H
		code int
		kind string
	}{
		{name: "overdraft", path: path, body: gin.H{"amount": "10", "operation": "subtract", "reference": "adj-neg"}, code: response.CodeUnprocessable, kind: "insufficient_funds"},
		{name: "unknown member", path: fmt.Sprintf("/api/v1/admin/members/%d/wallet/adjust", enrolled.Member.ID+99), body: gin.H{"amount": "10", "reference": "adj-ghost"}, code: response.CodeNotFound, kind: "not_found"},
		{name: "bad operation", path: path, body: gin.H{"amount": "10", "operation": "double"}, code: response.CodeBadRequest},
		{name: "zero amount", path: path, body: gin.H{"amount": "0"}, code: response.CodeBadRequest},
		{name: "lock without funds", path: fmt.Sprintf("/api/v1/admin/members/%d/wallet/lock", enrolled.Member.ID), body: gin.H{"amount": "5", "reference": "lock-1"}, code: response.CodeUnprocessable, kind: "insufficient_funds"},
	}
	for _, tc := range cases {
		env := postJSON(t, r, tc.path, tc.body)
		if env.StatusCode != tc.code {
			t.Fatalf("%s: status_code want %d got %+v", tc.name, tc.code, env)
		}
		if tc.kind != "" && env.Kind != tc.kind {
			t.Fatalf("%s: kind want %s got %s", tc.name, tc.kind, env.Kind)
		}
		if env.AlreadyProcessed {
			t.Fatalf("%s: failure must not be flagged already processed", tc.name)
		}
	}
}
