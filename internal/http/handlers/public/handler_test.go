package public

import (
	"bytes"
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

func setupPublicRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:public_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	api := r.Group("/api/v1")
	api.POST("/members", h.Enroll)
	api.GET("/members/:id/wallet", h.GetWallet)
	api.POST("/packages", h.PurchasePackage)
	api.POST("/packages/:id/stop", h.StopPackage)
	api.POST("/packages/:id/withdraw", h.WithdrawPrincipal)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) envelope {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s http status want 200 got %d", method, path, w.Code)
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope failed: %v body=%s", err, w.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("unmarshal data failed: %v data=%s", err, string(env.Data))
	}
}

func enrollVia(t *testing.T, r *gin.Engine, username string, sponsorID uint) uint {
	t.Helper()
	env := doJSON(t, r, http.MethodPost, "/api/v1/members", gin.H{"username": username, "sponsor_id": sponsorID})
	if env.StatusCode != response.CodeOK {
		t.Fatalf("enroll %s failed: %+v", username, env)
	}
	var result struct {
		Member struct {
			ID uint `json:"id"`
		} `json:"member"`
		Node struct {
			Position string `json:"position"`
		} `json:"node"`
	}
	decodeData(t, env, &result)
	if result.Member.ID == 0 || result.Node.Position == "" {
		t.Fatalf("enroll %s should return member and node, got %s", username, string(env.Data))
	}
	return result.Member.ID
}

func TestEnrollHandler(t *testing.T) {
	r := setupPublicRouter(t)
	rootID := enrollVia(t, r, "root", 0)
	_ = enrollVia(t, r, "alice", rootID)

	env := doJSON(t, r, http.MethodPost, "/api/v1/members", gin.H{"username": "ghost", "sponsor_id": rootID + 99})
	if env.StatusCode != response.CodeNotFound || env.Kind != "not_found" {
		t.Fatalf("unknown sponsor want 404/not_found got %+v", env)
	}

	env = doJSON(t, r, http.MethodPost, "/api/v1/members", gin.H{"username": "second_root"})
	if env.StatusCode != response.CodeConflict || env.Kind != "invalid_state" {
		t.Fatalf("second root want 409/invalid_state got %+v", env)
	}

	env = doJSON(t, r, http.MethodPost, "/api/v1/members", gin.H{"username": "alice", "sponsor_id": rootID})
	if env.StatusCode == response.CodeOK || env.Kind == "" {
		t.Fatalf("duplicate username should fail with a kind, got %+v", env)
	}
}

func TestPackageLifecycleHandlers(t *testing.T) {
	r := setupPublicRouter(t)
	rootID := enrollVia(t, r, "root", 0)
	memberID := enrollVia(t, r, "investor", rootID)

	purchase := gin.H{"member_id": memberID, "principal": "100", "reference": "pkg-1"}
	env := doJSON(t, r, http.MethodPost, "/api/v1/packages", purchase)
	if env.StatusCode != response.CodeOK {
		t.Fatalf("purchase failed: %+v", env)
	}
	var bought struct {
		Package struct {
			ID     uint   `json:"id"`
			Status string `json:"status"`
		} `json:"package"`
		Created bool `json:"created"`
	}
	decodeData(t, env, &bought)
	if bought.Package.ID == 0 || !bought.Created || bought.Package.Status != "active" {
		t.Fatalf("unexpected purchase result: %s", string(env.Data))
	}

	env = doJSON(t, r, http.MethodPost, "/api/v1/packages", purchase)
	decodeData(t, env, &bought)
	if env.StatusCode != response.CodeOK || bought.Created {
		t.Fatalf("repeated purchase should return the existing package, got %+v", env)
	}

	env = doJSON(t, r, http.MethodPost, "/api/v1/packages", gin.H{"member_id": memberID, "principal": "abc"})
	if env.StatusCode != response.CodeBadRequest {
		t.Fatalf("bad principal want 400 got %+v", env)
	}

	packagePath := fmt.Sprintf("/api/v1/packages/%d", bought.Package.ID)
	env = doJSON(t, r, http.MethodPost, packagePath+"/withdraw", nil)
	if env.StatusCode != response.CodeConflict || env.Kind != "invalid_state" {
		t.Fatalf("withdraw before stop want 409/invalid_state got %+v", env)
	}

	env = doJSON(t, r, http.MethodPost, packagePath+"/stop", nil)
	if env.StatusCode != response.CodeOK {
		t.Fatalf("stop failed: %+v", env)
	}
	var stopped struct {
		PenaltyAmount      string `json:"penalty_amount"`
		PrincipalRemaining string `json:"principal_remaining"`
		Status             string `json:"status"`
	}
	decodeData(t, env, &stopped)
	if stopped.Status != "stopped" || stopped.PenaltyAmount != "15.00" || stopped.PrincipalRemaining != "85.00" {
		t.Fatalf("early stop should charge 15%%, got %+v", stopped)
	}

	env = doJSON(t, r, http.MethodPost, packagePath+"/stop", nil)
	if env.StatusCode != response.CodeConflict {
		t.Fatalf("second stop want 409 got %+v", env)
	}

	env = doJSON(t, r, http.MethodPost, packagePath+"/withdraw", nil)
	if env.StatusCode != response.CodeOK {
		t.Fatalf("withdraw failed: %+v", env)
	}
	var withdrawn struct {
		Amount string `json:"amount"`
		Status string `json:"status"`
	}
	decodeData(t, env, &withdrawn)
	if withdrawn.Amount != "85.00" || withdrawn.Status != "withdrawn" {
		t.Fatalf("unexpected withdraw result: %+v", withdrawn)
	}

	env = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/members/%d/wallet", memberID), nil)
	var balance struct {
		Available string `json:"available"`
		Total     string `json:"total"`
	}
	decodeData(t, env, &balance)
	if balance.Available != "85.00" || balance.Total != "85.00" {
		t.Fatalf("wallet should hold the refunded principal, got %+v", balance)
	}

	env = doJSON(t, r, http.MethodPost, "/api/v1/packages/999/stop", nil)
	if env.StatusCode != response.CodeNotFound || env.Kind != "not_found" {
		t.Fatalf("unknown package want 404/not_found got %+v", env)
	}
}
