package postgres

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: "postgres://u@db/x", Host: "ignored"},
			want: "postgres://u@db/x",
		},
		{
			name: "defaults port and ssl mode",
			cfg:  ClientConfig{Host: "db", Database: "auctiond", User: "app", Password: "pw"},
			want: "postgres://app:pw@db:5432/auctiond?sslmode=disable",
		},
		{
			name: "custom port and ssl mode",
			cfg:  ClientConfig{Host: "db", Port: 6543, Database: "auctiond", User: "app", SSLMode: "require"},
			want: "postgres://app:@db:6543/auctiond?sslmode=require",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.want, DSN(tt.cfg))
		})
	}
}

func TestNumeric(t *testing.T) {
	d, err := numeric("12.50")
	check.NoError(t, err)
	check.Equal(t, "12.50", d.StringFixed(2))

	d, err = numeric("")
	check.NoError(t, err)
	check.True(t, d.IsZero())

	_, err = numeric("twelve")
	check.Error(t, err)
}
