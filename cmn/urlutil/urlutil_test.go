package urlutil

import "testing"

func TestRoundTrip(t *testing.T) {
	const raw = "https://user:pw@host.example:8443/a/b?x=1#frag"

	info, ok := Parse(raw)
	if !ok {
		t.Fatalf("Parse(%q) failed", raw)
	}
	if info.Protocol != "https://" {
		t.Errorf("Protocol = %q, want %q", info.Protocol, "https://")
	}
	if info.Username != "user" || info.Password != "pw" {
		t.Errorf("auth = %q/%q, want user/pw", info.Username, info.Password)
	}
	if info.Hostname != "host.example" || info.Port != "8443" {
		t.Errorf("host = %q:%q, want host.example:8443", info.Hostname, info.Port)
	}
	if info.Pathname != "/a/b" {
		t.Errorf("Pathname = %q, want /a/b", info.Pathname)
	}
	if info.Query != "x=1" {
		t.Errorf("Query = %q, want x=1", info.Query)
	}
	if info.Hash != "#frag" {
		t.Errorf("Hash = %q, want #frag", info.Hash)
	}
	if got := info.Href(); got != raw {
		t.Errorf("Href() = %q, want %q", got, raw)
	}
}

func TestMissingHostnameFails(t *testing.T) {
	if _, ok := Parse("https:///path"); ok {
		t.Fatal("expected parse failure with no hostname")
	}
}
