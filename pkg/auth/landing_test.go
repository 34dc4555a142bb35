package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareLanding(t *testing.T) {
	const expected = "https://portal.example.edu/home"

	tests := []struct {
		name    string
		actual  string
		wantErr string
	}{
		{name: "exact", actual: "https://portal.example.edu/home"},
		{name: "query ignored", actual: "https://portal.example.edu/home?tab=1"},
		{name: "fragment ignored", actual: "https://portal.example.edu/home#top"},
		{name: "trailing slash", actual: "https://portal.example.edu/home/"},
		{name: "host case", actual: "https://Portal.Example.edu/home"},
		{name: "login redirect", actual: "https://portal.example.edu/login?next=/home", wantErr: "redirected to login page"},
		{name: "sso redirect", actual: "https://portal.example.edu/auth/sso", wantErr: "redirected to login page"},
		{name: "other host", actual: "https://sso.example.edu/home", wantErr: "another host"},
		{name: "scheme change", actual: "http://portal.example.edu/home", wantErr: "scheme changed"},
		{name: "other page", actual: "https://portal.example.edu/notice", wantErr: "landed on /notice"},
		{name: "path prefix is not a match", actual: "https://portal.example.edu/homework", wantErr: "landed on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CompareLanding(expected, tt.actual)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.True(t, MatchLanding(expected, tt.actual))
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
			assert.False(t, MatchLanding(expected, tt.actual))
		})
	}
}

func TestCompareLanding_RootPath(t *testing.T) {
	assert.NoError(t, CompareLanding("https://portal.example.edu", "https://portal.example.edu/"))
}

func TestCompareLanding_InvalidExpected(t *testing.T) {
	assert.ErrorContains(t, CompareLanding("://bad", "https://portal.example.edu/"), "invalid landing URL")
}
