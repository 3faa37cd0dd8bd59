package postgresql

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/loykin/reqpipe/internal/constants"
)

type Config struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ToMap prefers an explicit DSN; otherwise one is built from the components when a
// host is set.
func (p *Config) ToMap() map[string]interface{} {
	dsn := strings.TrimSpace(p.DSN)
	host := strings.TrimSpace(p.Host)
	if dsn == "" && host != "" {
		port := p.Port
		if port == 0 {
			port = constants.DefaultPostgresPort
		}
		ssl := strings.TrimSpace(p.SSLMode)
		if ssl == "" {
			ssl = constants.DefaultPostgresSSLMode
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(strings.TrimSpace(p.User), strings.TrimSpace(p.Password)),
			Host:     fmt.Sprintf("%s:%d", host, port),
			Path:     "/" + strings.TrimSpace(p.DBName),
			RawQuery: "sslmode=" + url.QueryEscape(ssl),
		}
		dsn = u.String()
	}
	return map[string]interface{}{
		"dsn": dsn,
	}
}
