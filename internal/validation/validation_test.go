package validation

import (
	"reflect"
	"strings"
	"testing"
)

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"ipv4", "1.1.1.1", false},
		{"ipv6", "2606:4700:4700::1111", false},
		{"ipv6 zone", "fe80::1%eth0", false},
		{"hostname", "example.com", false},
		{"fqdn", "example.com.", false},
		{"single label", "localhost", false},
		{"hyphen inside", "my-router.lan", false},
		{"empty", "", true},
		{"whitespace", " example.com", true},
		{"flag-like", "-c", true},
		{"slash", "a/b", true},
		{"empty label", "a..b", true},
		{"space inside", "exa mple.com", true},
		{"control char", "a\x00b", true},
		{"long label", strings.Repeat("a", 64) + ".com", true},
		{"too long", strings.Repeat("a.", 130), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHost(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHost(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateHosts(t *testing.T) {
	errs := ValidateHosts([]string{"1.1.1.1", "example.com", "EXAMPLE.com", "", "8.8.8.8"})
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}

	var indexes []int
	for _, err := range errs {
		he, ok := err.(*HostError)
		if !ok {
			t.Fatalf("error %v is %T, want *HostError", err, err)
		}
		indexes = append(indexes, he.Index)
	}
	if !reflect.DeepEqual(indexes, []int{2, 3}) {
		t.Errorf("indexes = %v, want [2 3]", indexes)
	}
	if !strings.Contains(errs[0].Error(), "duplicates ping_targets[1]") {
		t.Errorf("unexpected duplicate message: %v", errs[0])
	}
}

func TestValidateHostsClean(t *testing.T) {
	if errs := ValidateHosts([]string{"a.example", "b.example"}); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestNormalizeHosts(t *testing.T) {
	got := NormalizeHosts([]string{" a.example ", "", "B.example", "a.example", "b.example"})
	want := []string{"a.example", "B.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeHosts = %v, want %v", got, want)
	}
}

func TestValidateSeriesName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"ping_measurement", false},
		{"rtt2", false},
		{"", true},
		{"ping-measurement", true},
		{"ping.measurement", true},
		{"drop table", true},
	}

	for _, tt := range tests {
		err := ValidateSeriesName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSeriesName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
