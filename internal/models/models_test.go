package models

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效HTTPS", "https://premium.usnews.com", false},
		{"有效HTTP", "http://www.usnews.com/best-colleges", false},
		{"缺少协议", "premium.usnews.com", true},
		{"FTP协议", "ftp://example.com", true},
		{"缺少主机", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"空格替换为下划线", "Example University", "Example_University"},
		{"&替换为and", "Texas A&M University", "Texas_AandM_University"},
		{"去除逗号和句点", "University of California, Berkeley", "University_of_California_Berkeley"},
		{"保留连字符", "Wilkes-Barre St. College", "Wilkes-Barre_St_College"},
		{"去除其他符号", "St. John's (NY)", "St_Johns_NY"},
		{"保留非ASCII字母", "Universität Zürich", "Universität_Zürich"},
		{"重音字母", "Universidad del Sagrado Corazón", "Universidad_del_Sagrado_Corazón"},
		{"去除非字母符号", "École Polytechnique (Paris)!", "École_Polytechnique_Paris"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, 期望 %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugify_碰撞(t *testing.T) {
	// 不同名称可能得到相同slug, 这是已知行为
	a := Slugify("St. Mary's College")
	b := Slugify("St Marys College")
	if a != b {
		t.Errorf("期望两个名称的slug相同, 实际 %q != %q", a, b)
	}
}

func TestPageType_Filename(t *testing.T) {
	tests := []struct {
		pt   PageType
		want string
	}{
		{PageMain, "main.html"},
		{PageOverallRankings, "overall_rankings.html"},
		{PageApplying, "applying.html"},
		{PagePaying, "paying.html"},
		{PageAcademics, "academics.html"},
		{PageStudentLife, "student_life.html"},
		{PageCampusInfo, "campus_info.html"},
	}

	for _, tt := range tests {
		t.Run(tt.pt.DisplayName(), func(t *testing.T) {
			if got := tt.pt.Filename(); got != tt.want {
				t.Errorf("Filename() = %q, 期望 %q", got, tt.want)
			}
		})
	}

	if len(AllPageTypes) != 7 {
		t.Errorf("期望7种页面类型, 实际 %d", len(AllPageTypes))
	}
	if !AllPageTypes[0].IsMain() {
		t.Error("主页必须排在第一位")
	}
}

func TestParsePageType(t *testing.T) {
	tests := []struct {
		in      string
		want    PageType
		wantErr bool
	}{
		{"main", PageMain, false},
		{"", PageMain, false},
		{"Academics", PageAcademics, false},
		{" student-life ", PageStudentLife, false},
		{"student_life", PageMain, true},
		{"overview", PageMain, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePageType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePageType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParsePageType(%q) = %q, 期望 %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildPageURL(t *testing.T) {
	base := "https://premium.usnews.com"
	link := "/best-colleges/example-university-1234"

	tests := []struct {
		name string
		base string
		link string
		pt   PageType
		want string
	}{
		{"主页不带尾部斜杠", base, link, PageMain, base + link},
		{"子页面", base, link, PageAcademics, base + link + "/academics"},
		{"base带尾部斜杠", base + "/", link, PagePaying, base + link + "/paying"},
		{"link缺少前导斜杠", base, "best-colleges/x-1", PageApplying, base + "/best-colleges/x-1/applying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPageURL(tt.base, tt.link, tt.pt); got != tt.want {
				t.Errorf("BuildPageURL() = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestNewDownloadTarget_确定性(t *testing.T) {
	record := UniversityRecord{Name: "Example University", URLPath: "/best-colleges/example-university-1234"}

	for _, pt := range AllPageTypes {
		a := NewDownloadTarget("https://premium.usnews.com", "downloads", record, pt)
		b := NewDownloadTarget("https://premium.usnews.com", "downloads", record, pt)
		if a.Path() != b.Path() || a.URL != b.URL {
			t.Errorf("相同输入得到不同目标: %+v vs %+v", a, b)
		}
	}

	target := NewDownloadTarget("https://premium.usnews.com", "downloads", record, PageAcademics)
	if want := filepath.Join("downloads", "Example_University", "academics.html"); target.Path() != want {
		t.Errorf("Path() = %q, 期望 %q", target.Path(), want)
	}
}

func TestContentHashSet(t *testing.T) {
	set := NewContentHashSet()
	h := HashContent([]byte("<html>a</html>"))

	if set.Contains(h) {
		t.Fatal("新集合不应包含任何哈希")
	}
	set.Add(h, "downloads/A/main.html")
	if path, ok := set.Lookup(h); !ok || path != "downloads/A/main.html" {
		t.Errorf("Lookup() = %q, %v", path, ok)
	}

	set.Reset()
	if set.Len() != 0 {
		t.Errorf("Reset后应为空, 实际 %d", set.Len())
	}
}

func TestContentHashSet_SeedFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.html"), []byte("<html>main</html>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0644); err != nil {
		t.Fatal(err)
	}

	set := NewContentHashSet()
	n, err := set.SeedFromDir(dir)
	if err != nil {
		t.Fatalf("SeedFromDir失败: %v", err)
	}
	if n != 1 {
		t.Errorf("期望加载1个文件, 实际 %d", n)
	}
	if !set.Contains(HashContent([]byte("<html>main</html>"))) {
		t.Error("已有文件的哈希应被加入集合")
	}

	missing := NewContentHashSet()
	if n, err := missing.SeedFromDir(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("目录不存在时应返回0和nil, 实际 %d, %v", n, err)
	}
}

func TestSessionState(t *testing.T) {
	var nilState *SessionState
	if !nilState.IsEmpty() {
		t.Error("nil状态应为空")
	}

	s := NewSessionState()
	if !s.IsEmpty() {
		t.Error("新建状态应为空")
	}

	added := s.AddCookies([]Cookie{
		{Name: "sid", Value: "1", Domain: ".usnews.com", Path: "/"},
		{Name: "sid", Value: "2", Domain: "usnews.com", Path: "/"},
		{Name: "pref", Value: "x", Domain: "premium.usnews.com", Path: "/"},
	})
	if added != 2 {
		t.Errorf("期望新增2个Cookie, 实际 %d", added)
	}
	if s.Cookies[0].Value != "2" {
		t.Errorf("相同Key的Cookie应保留最新值, 实际 %q", s.Cookies[0].Value)
	}

	s.SetStorage(LocalStorageKind, "https://premium.usnews.com/", map[string]string{"token": "abc"})
	if got := s.Storage(LocalStorageKind, "https://premium.usnews.com"); got["token"] != "abc" {
		t.Errorf("Storage() = %v", got)
	}
	if s.EntryCount() != 3 {
		t.Errorf("EntryCount() = %d, 期望 3", s.EntryCount())
	}
}

func TestDedupeOrigins(t *testing.T) {
	got := DedupeOrigins([]string{
		"https://www.usnews.com",
		"https://premium.usnews.com/",
		"https://WWW.usnews.com/best-colleges",
		"",
	})
	want := []string{"https://www.usnews.com", "https://premium.usnews.com"}
	if len(got) != len(want) {
		t.Fatalf("DedupeOrigins() = %v, 期望 %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("第%d项 = %q, 期望 %q", i, got[i], want[i])
		}
	}
}

func TestDownloadConfig_Override(t *testing.T) {
	three := 3
	cfg := DownloadConfig{
		DownloadsDir: "downloads",
		PageTypeOverrides: map[string]PageTypeOverride{
			"academics": {Timeout: 45, Retries: &three},
			"main":      {Timeout: 30},
		},
	}

	timeout, retries := cfg.Override(PageAcademics)
	if timeout != Seconds(45) || retries != 3 {
		t.Errorf("academics覆盖 = %v/%d", timeout, retries)
	}

	timeout, retries = cfg.Override(PageMain)
	if timeout != Seconds(30) || retries != DefaultPageRetries {
		t.Errorf("main覆盖 = %v/%d", timeout, retries)
	}

	timeout, retries = cfg.Override(PagePaying)
	if timeout != 0 || retries != DefaultPageRetries {
		t.Errorf("未配置页面应使用默认值, 实际 %v/%d", timeout, retries)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("配置应有效: %v", err)
	}

	cfg.PageTypeOverrides["overview"] = PageTypeOverride{Timeout: 1}
	if err := cfg.Validate(); err == nil {
		t.Error("未知页面类型应验证失败")
	}
}

func TestFetchOutcome_Reason(t *testing.T) {
	if FetchPermanent.String() != "permanent" {
		t.Errorf("String() = %q", FetchPermanent.String())
	}
	o := FetchOutcome{Kind: FetchPermanent, Error: &ErrorInfo{Status: 404, HasStatus: true, Message: "页面未找到"}}
	if o.Reason() != "页面未找到 (HTTP 404)" {
		t.Errorf("Reason() = %q", o.Reason())
	}
}

func TestCheckpoint_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")

	cp := NewCheckpoint("run-1")
	cp.Record("A University", false)
	cp.Record("B College", true)
	cp.Record("A University", true)

	if err := cp.SaveToFile(path); err != nil {
		t.Fatalf("保存检查点失败: %v", err)
	}

	loaded, err := LoadCheckpointFromFile(path)
	if err != nil {
		t.Fatalf("加载检查点失败: %v", err)
	}
	if loaded.RunID != "run-1" {
		t.Errorf("RunID = %q", loaded.RunID)
	}
	if len(loaded.Completed) != 2 || len(loaded.Failed) != 0 {
		t.Errorf("Completed=%v Failed=%v", loaded.Completed, loaded.Failed)
	}
}
