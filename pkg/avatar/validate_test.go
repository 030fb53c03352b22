package avatar

import "testing"

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"trusted https png", "https://cdn.pluralkit.me/images/abc.png", true},
		{"trusted https webp", "https://cdn.discordapp.com/avatars/1/x.webp", true},
		{"uppercase extension", "https://i.imgur.com/ABC.PNG", true},
		{"localhost http", "http://localhost:8080/test.png", true},
		{"loopback http", "http://127.0.0.1/test.jpg", true},
		{"untrusted host", "https://evil.example.com/x.png", false},
		{"plain http on trusted host", "http://cdn.pluralkit.me/x.png", false},
		{"wrong extension", "https://cdn.pluralkit.me/x.svg", false},
		{"no extension", "https://cdn.pluralkit.me/avatar", false},
		{"empty", "", false},
		{"garbage", "::not a url::", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateURL(tt.url); got != tt.want {
				t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42", "42"},
		{"abcde", "abcde"},
		{"../../etc/passwd", "______etc_passwd"},
		{"name with spaces", "name_with_spaces"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		if got := SanitizeID(tt.in); got != tt.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeID(string(long)); len(got) != 50 {
		t.Errorf("long id not capped: len %d", len(got))
	}
}
