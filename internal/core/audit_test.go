package core_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/core"
)

func writeDownload(t *testing.T, root, university, file, content string) string {
	t.Helper()
	dir := filepath.Join(root, university)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAuditor_Scan(t *testing.T) {
	root := t.TempDir()
	writeDownload(t, root, "Example_University", "main.html",
		`<link rel="canonical" href="https://premium.usnews.com/best-colleges/example-university-1234">`)
	writeDownload(t, root, "Example_University", "academics.html",
		`<a>Sign in</a><h1>404 Not Found</h1><p>Try it now</p>`)
	writeDownload(t, root, "Sample_College", "main.html", `<p>plain</p>`)
	writeDownload(t, root, "Sample_College", "notes.txt", `ignored`)

	auditor := core.NewAuditor(root)
	ctx := context.Background()

	report, err := auditor.Scan(ctx, "")
	if err != nil {
		t.Fatalf("检查失败: %v", err)
	}

	s := report.Summary
	if s.Universities != 2 || s.TotalFiles != 3 {
		t.Errorf("Universities=%d TotalFiles=%d, 期望 2/3", s.Universities, s.TotalFiles)
	}
	if s.LoggedInFiles != 1 || s.PremiumFiles != 1 || s.ErrorPages != 1 || s.ProblemPages != 2 {
		t.Errorf("汇总不正确: %+v", s)
	}
	if n := len(report.ProblemPages()); n != 2 {
		t.Errorf("ProblemPages = %d, 期望 2", n)
	}

	t.Run("按大学名称过滤", func(t *testing.T) {
		report, err := auditor.Scan(ctx, "Example University")
		if err != nil {
			t.Fatal(err)
		}
		if report.Summary.TotalFiles != 2 || report.Summary.Universities != 1 {
			t.Errorf("过滤后汇总: %+v", report.Summary)
		}
	})

	t.Run("下载目录不存在", func(t *testing.T) {
		report, err := core.NewAuditor(filepath.Join(root, "missing")).Scan(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if report.Summary.TotalFiles != 0 {
			t.Error("期望空报告")
		}
	})
}

func TestCheckFile(t *testing.T) {
	root := t.TempDir()
	path := writeDownload(t, root, "Example_University", "paying.html",
		`<link rel="canonical" href="https://www.usnews.com/best-colleges/example-university-1234/paying"><a>Sign out</a><p>College Compass</p>`)

	result := core.CheckFile(path)
	if result.University != "Example_University" || result.FileType != "paying" {
		t.Errorf("University=%s FileType=%s", result.University, result.FileType)
	}
	if result.IsLoggedIn || result.IsPremium {
		t.Error("www canonical 应判定为未登录")
	}
	issues := strings.Join(result.Issues, ",")
	for _, want := range []string{"canonical:https://www.usnews.com", "not_logged_in:www_host", "upsell:College Compass"} {
		if !strings.Contains(issues, want) {
			t.Errorf("Issues 缺少 %s: %v", want, result.Issues)
		}
	}

	missing := core.CheckFile(filepath.Join(root, "none", "main.html"))
	if !missing.IsErrorPage || missing.ContentOK {
		t.Errorf("读取失败应记为错误页: %+v", missing)
	}
}
