package utils

import "testing"

func TestDecodeJSONObjectFull(t *testing.T) {
	var got map[string]string
	tier, err := DecodeJSONObject(`{"张三":"你好"}`, &got)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tier != "full" || got["张三"] != "你好" {
		t.Fatalf("unexpected result: %s %v", tier, got)
	}
}

func TestDecodeJSONObjectWithWrapper(t *testing.T) {
	var got map[string]string
	tier, err := DecodeJSONObject("好的,结果如下:\n```json\n{\"李四\":\"开会\"}\n```", &got)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tier != "braced" || got["李四"] != "开会" {
		t.Fatalf("unexpected result: %s %v", tier, got)
	}
}

func TestDecodeJSONObjectInvalid(t *testing.T) {
	var got map[string]string
	if _, err := DecodeJSONObject(`{"王五": tru`, &got); err == nil {
		t.Fatalf("expected error for truncated output")
	}
	if _, err := DecodeJSONObject("   ", &got); err == nil {
		t.Fatalf("expected error for empty output")
	}
}

func TestExtractBraced(t *testing.T) {
	if _, ok := ExtractBraced("} no {"); ok {
		t.Fatalf("expected no span when braces are reversed")
	}
	got, ok := ExtractBraced("x {a} {b} y")
	if !ok || got != "{a} {b}" {
		t.Fatalf("unexpected span: %q", got)
	}
}
