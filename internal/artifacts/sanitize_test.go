package artifacts

import "testing"

func TestSanitizeIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain username", "someuser", "someuser"},
		{"allowed punctuation", "some.user_name-1", "some.user_name-1"},
		{"email", "user@example.com", "user%40example.com"},
		{"phone with plus", "+27821234567", "%2B27821234567"},
		{"spaces", "a b", "a%20b"},
		{"slash", "a/b", "a%2Fb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeIdentity(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
			}

			back, err := UnsanitizeIdentity(got)
			if err != nil {
				t.Fatalf("UnsanitizeIdentity(%q) failed: %v", got, err)
			}
			if back != tt.in {
				t.Errorf("round trip of %q gave %q", tt.in, back)
			}
		})
	}
}

func TestUnsanitizeIdentityMalformed(t *testing.T) {
	for _, in := range []string{"%", "%2", "%zz", "a%"} {
		if _, err := UnsanitizeIdentity(in); err == nil {
			t.Errorf("UnsanitizeIdentity(%q) should fail", in)
		}
	}
}
