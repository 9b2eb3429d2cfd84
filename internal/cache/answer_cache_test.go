package cache

import (
	"strings"
	"testing"
)

func TestAnswerKey(t *testing.T) {
	a := AnswerKey("u1", "biology", "abc123", "ask|simple|what is atp")
	b := AnswerKey("u1", "biology", "abc123", "ask|simple|what is atp")
	if a != b {
		t.Fatal("key must be stable")
	}
	if !strings.HasPrefix(a, "study:answer:u1:biology:abc123:") {
		t.Fatalf("key = %s", a)
	}
	if AnswerKey("u1", "biology", "def456", "ask|simple|what is atp") == a {
		t.Fatal("fingerprint must change the key")
	}
	if AnswerKey("u1", "biology", "abc123", "ask|genz|what is atp") == a {
		t.Fatal("request must change the key")
	}
	if !strings.Contains(AnswerKey("u1", "biology", "", "x"), ":empty:") {
		t.Fatal("empty fingerprint should be spelled out")
	}
}

func TestScopePattern_EscapesGlob(t *testing.T) {
	got := scopePattern("u*1", "bio[1]")
	want := `study:answer:u\*1:bio\[1\]:*`
	if got != want {
		t.Fatalf("pattern = %s, want %s", got, want)
	}
	if !strings.HasPrefix(AnswerKey("u1", "bio", "f", "r"), strings.TrimSuffix(scopePattern("u1", "bio"), "*")) {
		t.Fatal("pattern must cover keys of the scope")
	}
}
