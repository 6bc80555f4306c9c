package browser

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		driver  string
		want    any
		wantErr bool
	}{
		{driver: "", want: &Chromedp{}},
		{driver: DriverChromedp, want: &Chromedp{}},
		{driver: DriverRod, want: &Rod{}},
		{driver: "selenium", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			l, err := New(tt.driver, Settings{Headless: true})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, l)
		})
	}
}

// TestOptions verifies stealth flags are appended to the chromedp defaults
func TestOptions(t *testing.T) {
	headless := Options(Settings{Headless: true})
	headful := Options(Settings{Headless: false})

	assert.Greater(t, len(headless), len(headful), "headless adds disable-gpu")
	assert.Greater(t, len(headful), len(stealthFlags))
}

func TestSettingsDefaults(t *testing.T) {
	var s Settings
	w, h := s.windowSize()

	assert.Equal(t, DefaultUserAgent, s.userAgent())
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	s = Settings{UserAgent: "ua", WindowWidth: 800, WindowHeight: 600}
	w, h = s.windowSize()
	assert.Equal(t, "ua", s.userAgent())
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestCookieParams(t *testing.T) {
	cookies := []*network.Cookie{
		{Name: "tt_webid", Value: "123", Domain: ".toutiao.com", Path: "/", Secure: true, HTTPOnly: true},
	}

	params := cookieParams(cookies)

	require.Len(t, params, 1)
	assert.Equal(t, "tt_webid", params[0].Name)
	assert.Equal(t, "123", params[0].Value)
	assert.Equal(t, ".toutiao.com", params[0].Domain)
	assert.Equal(t, "/", params[0].Path)
	assert.True(t, params[0].Secure)
	assert.True(t, params[0].HTTPOnly)
}
