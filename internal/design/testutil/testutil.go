package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gigfactory/designhub/internal/config"
	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"github.com/gigfactory/designhub/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_designhub"
	JWTSecret  = "designhub-test-secret"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func loadEnv() {
	if root := projectRoot(); root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB opens postgres on an isolated schema that is dropped after the test.
// The test is skipped when postgres is not reachable.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.GetEnvOrDefault("DB_HOST", "127.0.0.1"),
		config.GetEnvOrDefault("DB_PORT", "5432"),
		config.GetEnvOrDefault("DB_USER", "designhub"),
		config.GetEnvOrDefault("DB_PASSWORD", "designhub"),
		config.GetEnvOrDefault("DB_NAME", "designhub"),
	)

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano())

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)).Error; err != nil {
		t.Skipf("cannot create test schema: %v", err)
	}
	if sqlSetup, err := setupDB.DB(); err == nil {
		sqlSetup.Close()
	}

	// search_path in the DSN so every pooled connection uses the test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			if sqlClean, _ := cleanDB.DB(); sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group behind the JWT gate
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT for the given user and roles
func GenerateTestToken(userID, name string, roles ...string) string {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": userID + "@test.local",
		"roles": roles,
		"iss":   "designhub",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// Tokens for the standard cast of a review.
func DesignerToken() string { return GenerateTestToken("designer-001", "Dana Designer", entity.RoleDesigner) }
func ExpertToken() string   { return GenerateTestToken("expert-001", "Eli Expert", entity.RoleExpert) }
func ClientToken() string   { return GenerateTestToken("client-001", "Cam Client", entity.RoleClient) }
func AdminToken() string    { return GenerateTestToken("admin-001", "Ada Admin", entity.RoleAdmin) }

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response envelope into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Data returns resp["data"] as a map, failing the test if it is not one
func Data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	resp := ParseResponse(w)
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no data object: %s", w.Body.String())
	}
	return data
}

// SeedProject creates a project
func SeedProject(t *testing.T, db *gorm.DB, id string) *entity.Project {
	t.Helper()
	p := &entity.Project{
		ID:        id,
		Name:      "Project " + id,
		CreatedBy: "admin-001",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	return p
}

// SeedDeliverable creates a deliverable in progress
func SeedDeliverable(t *testing.T, db *gorm.DB, id, projectID string) *entity.Deliverable {
	t.Helper()
	d := &entity.Deliverable{
		ID:        id,
		ProjectID: projectID,
		Name:      "Deliverable " + id,
		Status:    entity.DeliverableStatusInProgress,
		CreatedBy: "admin-001",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("Failed to seed deliverable: %v", err)
	}
	return d
}

// SeedTask creates a task, optionally linked to a deliverable
func SeedTask(t *testing.T, db *gorm.DB, id, projectID string, deliverableID *string, status string) *entity.Task {
	t.Helper()
	task := &entity.Task{
		ID:            id,
		ProjectID:     projectID,
		DeliverableID: deliverableID,
		Name:          "Task " + id,
		Priority:      "medium",
		Status:        status,
		CreatedBy:     "admin-001",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if status == entity.TaskStatusCompleted {
		now := time.Now()
		task.CompletedAt = &now
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	return task
}

// Files returns n artifact references
func Files(names ...string) []entity.FileRef {
	out := make([]entity.FileRef, 0, len(names))
	for _, n := range names {
		out = append(out, entity.FileRef{Path: "drawings/test/" + n, Name: n, Size: 1024, ContentType: "application/pdf"})
	}
	return out
}
