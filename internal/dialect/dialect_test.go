package dialect

import (
	"reflect"
	"testing"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		in      string
		want    Choice
		wantErr bool
	}{
		{"", ChoiceAuto, false},
		{"auto", ChoiceAuto, false},
		{"mobile", ChoiceMobile, false},
		{"desktop", ChoiceDesktop, false},
		{"tablet", "", true},
		{"Mobile", "", true},
	}

	for _, tt := range tests {
		got, err := ParseChoice(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseChoice(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseChoice(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseChoice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChoiceOrder(t *testing.T) {
	tests := []struct {
		choice Choice
		want   []Dialect
	}{
		{ChoiceAuto, []Dialect{Mobile, Desktop}},
		{ChoiceMobile, []Dialect{Mobile}},
		{ChoiceDesktop, []Dialect{Desktop}},
	}

	for _, tt := range tests {
		if got := tt.choice.Order(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%q.Order() = %v, want %v", tt.choice, got, tt.want)
		}
	}
}
