package normalize

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "user@example.com"},
		{"USER@EXAMPLE.COM", "user@example.com"},
		{"  User@Example.Com  ", "user@example.com"},
		{"", ""},
		{"   ", ""},
		{"Mixed.Case@Domain.ORG", "mixed.case@domain.org"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Email(tt.input)
			if got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Jane Runner", "Jane Runner"},
		{"  Jane Runner  ", "Jane Runner"},
		{"", ""},
		{"   ", ""},
		{"UPPERCASE NAME", "UPPERCASE NAME"}, // Name preserves case
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Name(tt.input)
			if got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRole(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"admin", "admin"},
		{"ADMIN", "admin"},
		{"  Coach  ", "coach"},
		{"ATHLETE", "athlete"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Role(tt.input)
			if got != tt.want {
				t.Errorf("Role(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"paid", "paid"},
		{"PAID", "paid"},
		{"  Pending  ", "pending"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Status(tt.input)
			if got != tt.want {
				t.Errorf("Status(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"donor@example.com", true},
		{"a.b+tag@sub.example.org", true},
		{"no-at-sign.example.com", false},
		{"two@@example.com", false},
		{"missing@tld", false},
		{"spaces in@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ValidEmail(tt.input); got != tt.want {
				t.Errorf("ValidEmail(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Plain Name", "Plain Name"},
		{"<b>Bold</b> Name", "Bold Name"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"<script>alert(1)</script>Sam", "Sam"},
		{"  padded  ", "padded"},
		{"Ann &amp;amp;amp;amp;amp;amp;lt;b&amp;amp;amp;amp;amp;amp;gt;", "Ann"},
		{"&amp;amp;amp;amp;amp;amp;amp;amp;lt;i&amp;amp;amp;amp;amp;amp;amp;amp;gt;Lee", "Lee"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := StripMarkup(tt.input)
			if got != tt.want {
				t.Errorf("StripMarkup(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := StripMarkup(got); again != got {
				t.Errorf("StripMarkup not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestIsEphemeralBlob(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"blob:https://app.example.com/5f1c", true},
		{"  BLOB:http://localhost:3000/abc", true},
		{"https://cdn.example.com/a.png", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsEphemeralBlob(tt.input); got != tt.want {
				t.Errorf("IsEphemeralBlob(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
