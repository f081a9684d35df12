package models

import (
	"strings"
	"testing"
)

func TestCliHeaders_Parse(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		wantErr   bool
		header    string
		wantValue string
	}{
		{"空数组", []string{}, false, "", ""},
		{"nil数组", nil, false, "", ""},
		{"名称前后空格", []string{"  Referer  : https://www.usnews.com"}, false, "Referer", "https://www.usnews.com"},
		{"值中间空格保留", []string{"X-Custom: value with spaces"}, false, "X-Custom", "value with spaces"},
		{"值中包含冒号", []string{"X-URL: https://example.com:8080/path"}, false, "X-Url", "https://example.com:8080/path"},
		{"多个冒号按第一个分割", []string{"Authorization: Bearer: token"}, false, "Authorization", "Bearer: token"},
		{"空值", []string{"User-Agent:"}, false, "User-Agent", ""},
		{"名称小写被规范化", []string{"accept-language: en-US"}, false, "Accept-Language", "en-US"},
		{"缺少冒号", []string{"User-Agent Mozilla/5.0"}, true, "", ""},
		{"缺少名称", []string{":value"}, true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers, err := CliHeaders(tt.input).Parse()
			if (err != nil) != tt.wantErr {
				t.Fatalf("期望错误=%v, 实际=%v", tt.wantErr, err)
			}
			if err != nil || tt.header == "" {
				return
			}
			if _, ok := headers[tt.header]; !ok {
				t.Fatalf("缺少头部 %s: %v", tt.header, headers)
			}
			if got := headers.Get(tt.header); got != tt.wantValue {
				t.Errorf("%s = %q, 期望 %q", tt.header, got, tt.wantValue)
			}
		})
	}
}

func TestCliHeaders_ParseErrorPosition(t *testing.T) {
	_, err := CliHeaders{"X-Ok: 1", "broken"}.Parse()
	if err == nil || !strings.Contains(err.Error(), "第2项") {
		t.Errorf("错误信息应指出第2项: %v", err)
	}
}

func TestFlattenHeaders(t *testing.T) {
	flat := FlattenHeaders(map[string][]string{
		"accept-language": {"en-US", "ko-KR"},
		"X-Empty":         {},
	})
	if flat["Accept-Language"] != "en-US" {
		t.Errorf("应取第一个值并规范化名称: %v", flat)
	}
	if _, ok := flat["X-Empty"]; ok {
		t.Error("没有值的头部应被忽略")
	}
}
