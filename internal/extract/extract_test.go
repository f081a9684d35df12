package extract_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/extract"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
)

const academicsPage = `<html><head>
<title>  Example University Academics |
 US News Best Colleges </title>
<link rel="canonical" href="https://premium.usnews.com/best-colleges/example-university-1234/academics">
<meta name="description" content="Academic programs at Example University.">
</head><body>
<h1>Example   University</h1>
<h2>Popular Majors</h2><h3>Class Sizes</h3><h2>Popular Majors</h2>
<a>Sign out</a>
<!-- Truncated before recommendations widget -->
</body></html>`

func TestRegistry(t *testing.T) {
	r := extract.DefaultRegistry()

	e, err := r.Get(extract.PageMetaName)
	if err != nil {
		t.Fatalf("内置抽取器应已注册: %v", err)
	}
	if e.Name() != "page-meta" {
		t.Errorf("Name = %s", e.Name())
	}

	if err := r.Register(extract.NewPageMetaExtractor()); err == nil {
		t.Error("重复注册应返回错误")
	}
	if _, err := r.Get("cost"); !errors.Is(err, extract.ErrUnknownExtractor) {
		t.Errorf("期望 ErrUnknownExtractor, 得到 %v", err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != extract.PageMetaName {
		t.Errorf("Names = %v", names)
	}
}

func TestPageMetaExtractor_Extract(t *testing.T) {
	e := extract.NewPageMetaExtractor()

	t.Run("完整页面", func(t *testing.T) {
		fields, err := e.Extract(academicsPage, "Example University")
		if err != nil {
			t.Fatalf("抽取失败: %v", err)
		}

		want := map[string]interface{}{
			"university":  "Example University",
			"title":       "Example University Academics | US News Best Colleges",
			"canonical":   "https://premium.usnews.com/best-colleges/example-university-1234/academics",
			"h1":          "Example University",
			"description": "Academic programs at Example University.",
			"login_state": "logged_in",
			"premium":     true,
			"truncated":   true,
		}
		for key, value := range want {
			if fields[key] != value {
				t.Errorf("%s = %v, 期望 %v", key, fields[key], value)
			}
		}

		headings, ok := fields["headings"].([]string)
		if !ok || len(headings) != 2 || headings[0] != "Popular Majors" || headings[1] != "Class Sizes" {
			t.Errorf("headings = %v", fields["headings"])
		}
	})

	t.Run("畸形HTML不panic", func(t *testing.T) {
		fields, err := e.Extract(`<html><h1>Broken <b>tags<title>x`, "Broken")
		if err != nil {
			t.Fatalf("可解析的畸形HTML不应失败: %v", err)
		}
		if fields["login_state"] != "unknown" {
			t.Errorf("login_state = %v", fields["login_state"])
		}
	})

	t.Run("空页面", func(t *testing.T) {
		if _, err := e.Extract("  \n", "Empty"); !errors.Is(err, extract.ErrEmptyPage) {
			t.Errorf("期望 ErrEmptyPage, 得到 %v", err)
		}
	})
}

type panicExtractor struct{}

func (panicExtractor) Name() string { return "panic" }

func (panicExtractor) Extract(html, university string) (extract.Fields, error) {
	panic("boom")
}

func writePage(t *testing.T, root, university, file, content string) {
	t.Helper()
	dir := filepath.Join(root, university)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunner_Run(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "downloads")
	output := filepath.Join(root, "extracted")

	writePage(t, downloads, "Example_University", "academics.html", academicsPage)
	writePage(t, downloads, "Sample_College", "academics.html", "")
	writePage(t, downloads, "No_Academics", "main.html", "<h1>main</h1>")

	fetcher := crawlers.NewStaticFetcher(5*time.Second, nil)
	runner := extract.NewRunner(fetcher, extract.NewPageMetaExtractor(), downloads, output)

	report, path, err := runner.Run(context.Background(), models.PageAcademics)
	if err != nil {
		t.Fatalf("抽取失败: %v", err)
	}

	s := report.Summary
	if s.TotalUniversities != 2 || s.ParsedUniversities != 1 || s.FailedUniversities != 1 {
		t.Errorf("汇总 = %+v", s)
	}
	if _, ok := report.Universities["Example University"]; !ok {
		t.Errorf("缺少 Example University: %v", report.Universities)
	}
	if path != filepath.Join(output, "page-meta_academics.json") {
		t.Errorf("输出路径 = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var saved models.ExtractionReport
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("输出不是有效JSON: %v", err)
	}
	if saved.Extractor != "page-meta" || saved.PageType != "academics" {
		t.Errorf("Extractor=%s PageType=%s", saved.Extractor, saved.PageType)
	}

	t.Run("抽取器panic只计为失败", func(t *testing.T) {
		runner := extract.NewRunner(fetcher, panicExtractor{}, downloads, output)
		report, _, err := runner.Run(context.Background(), models.PageAcademics)
		if err != nil {
			t.Fatal(err)
		}
		if report.Summary.FailedUniversities != 2 {
			t.Errorf("FailedUniversities = %d, 期望 2", report.Summary.FailedUniversities)
		}
	})
}
