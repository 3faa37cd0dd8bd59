package postgresql

import "testing"

func TestConfig_ToMap(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit dsn wins", Config{DSN: "postgres://a@b/c", Host: "ignored"}, "postgres://a@b/c"},
		{"built from parts", Config{Host: "db", User: "u", Password: "p@ss", DBName: "hist"}, "postgres://u:p%40ss@db:5432/hist?sslmode=disable"},
		{"custom port and ssl", Config{Host: "db", Port: 6543, User: "u", Password: "p", DBName: "d", SSLMode: "require"}, "postgres://u:p@db:6543/d?sslmode=require"},
		{"nothing", Config{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := tt.cfg.ToMap()["dsn"].(string)
			if got != tt.want {
				t.Fatalf("dsn = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialect_Placeholder(t *testing.T) {
	d := NewDialect()
	if d.Placeholder(3) != "$3" || d.DriverName() != "postgresql" {
		t.Fatalf("unexpected dialect values")
	}
}
