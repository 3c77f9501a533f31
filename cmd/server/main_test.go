package main

import "testing"

func TestConfigPath(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"-addr", ":9000"}, ""},
		{[]string{"-config", "a.yaml"}, "a.yaml"},
		{[]string{"--config", "b.yaml", "-debug"}, "b.yaml"},
		{[]string{"-debug", "--config=c.yaml"}, "c.yaml"},
		{[]string{"-config"}, ""},
	}
	for _, tt := range tests {
		if got := configPath(tt.args); got != tt.want {
			t.Errorf("configPath(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
