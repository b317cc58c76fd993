package cmd

import "testing"

func TestParseServeAddr(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     string
		want    string
		wantErr bool
	}{
		{name: "default", args: nil, want: defaultAddr},
		{name: "positional", args: []string{":8080"}, want: ":8080"},
		{name: "flag", args: []string{"--addr", ":8080"}, want: ":8080"},
		{name: "single dash flag", args: []string{"-addr", "localhost:9090"}, want: "localhost:9090"},
		{name: "bare port shorthand", args: []string{"8080"}, want: ":8080"},
		{name: "env fallback", args: nil, env: ":7000", want: ":7000"},
		{name: "flag beats env", args: []string{":8080"}, env: ":7000", want: ":8080"},
		{name: "invalid positional", args: []string{"my host:8080"}, wantErr: true},
		{name: "invalid port", args: []string{":99999"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PAPERBASE_ADDR", tt.env)
			got, err := parseServeAddr(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseServeAddr(%v) = %q, want error", tt.args, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseServeAddr(%v) error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("parseServeAddr(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestDefaultAddr(t *testing.T) {
	if defaultAddr != "127.0.0.1:3400" {
		t.Errorf("defaultAddr = %q, want 127.0.0.1:3400", defaultAddr)
	}
}

func TestValidateAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":8080"},
		{name: "localhost", addr: "localhost:3400"},
		{name: "loopback", addr: "127.0.0.1:3400"},
		{name: "all interfaces", addr: "0.0.0.0:80"},
		{name: "ipv6 loopback", addr: "[::1]:8080"},
		{name: "port zero", addr: ":0"},
		{name: "port max", addr: ":65535"},
		{name: "hostname", addr: "myhost:9090"},

		{name: "no port", addr: "localhost", wantErr: true},
		{name: "empty string", addr: "", wantErr: true},
		{name: "port non-numeric", addr: ":abc", wantErr: true},
		{name: "port negative", addr: ":-1", wantErr: true},
		{name: "port too high", addr: ":65536", wantErr: true},
		{name: "port empty after colon", addr: "localhost:", wantErr: true},
		{name: "host with space", addr: "my host:8080", wantErr: true},
		{name: "host with tab", addr: "my\thost:8080", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateAddr(tt.addr)
			if tt.wantErr && err == nil {
				t.Errorf("validateAddr(%q) = nil, want error", tt.addr)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateAddr(%q) = %v, want nil", tt.addr, err)
			}
		})
	}
}

func FuzzParseServeAddr(f *testing.F) {
	f.Add(":8080")
	f.Add("localhost:3400")
	f.Add("8080")
	f.Add("")
	f.Add(":99999")
	f.Add("[::1]:8080")
	f.Add("host with space:80")

	f.Fuzz(func(t *testing.T, addr string) {
		_, _ = parseServeAddr([]string{addr}) // must not panic
	})
}
