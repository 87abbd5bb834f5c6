package security

import (
	"testing"
	"time"
)

// TestValidateURL_Allowed は公開URLが検証を通過することを検証する。
func TestValidateURL_Allowed(t *testing.T) {
	guard := NewSSRFGuard()

	urls := []string{
		"https://pubs.acs.org/action/showFeed?type=axatoc&feed=rss&jc=jacsat",
		"http://feeds.nature.com/nature/rss/current",
		"https://8.8.8.8/feed.xml",
	}

	for _, u := range urls {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
}

// TestValidateURL_Blocked は危険なURLが拒否されることを検証する。
func TestValidateURL_Blocked(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name string
		url  string
	}{
		{name: "空URL", url: ""},
		{name: "不正なスキーム", url: "ftp://example.com/feed.xml"},
		{name: "javascriptスキーム", url: "javascript:alert(1)"},
		{name: "ホストなし", url: "https:///feed.xml"},
		{name: "localhost", url: "http://localhost/feed.xml"},
		{name: "大文字のlocalhost", url: "http://LOCALHOST/feed.xml"},
		{name: "ループバックIP", url: "http://127.0.0.1/feed.xml"},
		{name: "プライベートIP 10系", url: "http://10.0.0.5/feed.xml"},
		{name: "プライベートIP 172系", url: "http://172.16.0.1/feed.xml"},
		{name: "プライベートIP 192系", url: "http://192.168.1.1/feed.xml"},
		{name: "クラウドメタデータIP", url: "http://169.254.169.254/latest/meta-data/"},
		{name: "IPv6ループバック", url: "http://[::1]/feed.xml"},
		{name: "IPv6リンクローカル", url: "http://[fe80::1]/feed.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.url)
			}
		})
	}
}

// TestNewSafeClient_Timeout は生成されたクライアントにタイムアウトが設定されることを検証する。
func TestNewSafeClient_Timeout(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient returned nil")
	}
	if client.Timeout != 10*time.Second {
		t.Errorf("client.Timeout = %v, want %v", client.Timeout, 10*time.Second)
	}
}
