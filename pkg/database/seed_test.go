package database

import (
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/pkg/logger"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const seedYAML = `
modules:
  - id: web
    title: Web Security
    order: 1
    lessons:
      - title: XSS
        video_url: https://cdn.example.com/xss.mp4
        duration_seconds: 300
        quiz:
          - question: What does XSS inject?
            options:
              - { label: A, text: SQL }
              - { label: B, text: Script }
            correct_answer: B
      - title: CSRF
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modules.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func memoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestLoadModuleSeed(t *testing.T) {
	modules, err := LoadModuleSeed(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("LoadModuleSeed: %v", err)
	}
	if len(modules) != 1 || len(modules[0].Lessons) != 2 {
		t.Fatalf("unexpected modules: %+v", modules)
	}
	l := modules[0].Lessons[0]
	if l.VideoURL == "" || l.DurationSeconds != 300 || l.Quiz[0].CorrectAnswer != "B" {
		t.Fatalf("lesson fields not parsed: %+v", l)
	}
}

func TestLoadModuleSeed_Invalid(t *testing.T) {
	tests := map[string]struct {
		body    string
		wantErr string
	}{
		"missing id": {
			body:    "modules:\n  - title: x\n",
			wantErr: "has no id",
		},
		"duplicate id": {
			body:    "modules:\n  - id: a\n  - id: a\n",
			wantErr: "duplicate module id",
		},
		"bad answer": {
			body: `
modules:
  - id: a
    lessons:
      - title: l
        quiz:
          - question: q
            options: [{ label: A, text: x }]
            correct_answer: Z
`,
			wantErr: "is not an option",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadModuleSeed(writeSeed(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSeedModules(t *testing.T) {
	db := memoryDB(t)
	path := writeSeed(t, seedYAML)

	if err := SeedModules(db, path); err != nil {
		t.Fatalf("SeedModules: %v", err)
	}
	// 已有数据时不重复写入
	if err := SeedModules(db, path); err != nil {
		t.Fatalf("SeedModules second run: %v", err)
	}

	var modules []model.LearningModule
	if err := db.Find(&modules).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(modules) != 1 || len(modules[0].Lessons) != 2 || modules[0].Lessons[0].Quiz[0].Question == "" {
		t.Fatalf("unexpected stored modules: %+v", modules)
	}
}

func TestSeedModules_MissingFile(t *testing.T) {
	db := memoryDB(t)
	if err := SeedModules(db, filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("missing seed file should be skipped, got %v", err)
	}
}

func TestSeedModules_LogsThroughZap(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	db := memoryDB(t)
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if err := SeedModules(db, missing); err != nil {
		t.Fatalf("SeedModules missing: %v", err)
	}
	if err := SeedModules(db, writeSeed(t, seedYAML)); err != nil {
		t.Fatalf("SeedModules: %v", err)
	}

	skipped := logs.FilterMessage("Module seed file not found, skipping").All()
	if len(skipped) != 1 || skipped[0].ContextMap()["path"] != missing {
		t.Fatalf("expected skip warning with path, got %+v", skipped)
	}
	seeded := logs.FilterMessage("Seeded learning modules").All()
	if len(seeded) != 1 || seeded[0].ContextMap()["count"] != int64(1) {
		t.Fatalf("expected seeded log with count, got %+v", seeded)
	}
}
