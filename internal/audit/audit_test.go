package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspAudit/internal/config"
	"cspAudit/internal/csp"
)

type fakeObserver struct {
	pages map[string]*Observation
	calls []string
}

func (f *fakeObserver) Observe(ctx context.Context, pageURL string) (*Observation, error) {
	f.calls = append(f.calls, pageURL)
	obs, ok := f.pages[pageURL]
	if !ok {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	return obs, nil
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Silent = true
	return cfg
}

func TestDirectiveFor(t *testing.T) {
	tests := []struct {
		entry Entry
		want  string
		ok    bool
	}{
		{Entry{"https://cdn.com/app.js", "script"}, csp.ScriptSrc, true},
		{Entry{"https://cdn.com/site.css", "link"}, csp.StyleSrc, true},
		{Entry{"https://fonts.com/a.woff2", "css"}, csp.FontSrc, true},
		{Entry{"https://img.com/bg.PNG?v=1", "css"}, csp.ImgSrc, true},
		{Entry{"https://img.com/a.jpg", "img"}, csp.ImgSrc, true},
		{Entry{"https://api.com/v1", "fetch"}, csp.ConnectSrc, true},
		{Entry{"https://api.com/v1", "xmlhttprequest"}, csp.ConnectSrc, true},
		{Entry{"https://stats.com/b", "beacon"}, csp.ConnectSrc, true},
		{Entry{"https://media.com/a.mp4", "video"}, csp.MediaSrc, true},
		{Entry{"https://player.com/embed", "iframe"}, csp.FrameSrc, true},
		{Entry{"https://x.com/a.swf", "embed"}, csp.ObjectSrc, true},
		{Entry{"https://x.com/a", "other"}, "", false},
	}
	for _, tt := range tests {
		got, ok := DirectiveFor(tt.entry)
		assert.Equal(t, tt.ok, ok, tt.entry)
		assert.Equal(t, tt.want, got, tt.entry)
	}
}

func TestIsCSPMessage(t *testing.T) {
	assert.True(t, IsCSPMessage("Refused to load the script because it violates the following Content Security Policy directive"))
	assert.True(t, IsCSPMessage("content security policy violation"))
	assert.False(t, IsCSPMessage("Uncaught TypeError: x is undefined"))
}

func TestRun(t *testing.T) {
	obs := &fakeObserver{pages: map[string]*Observation{
		"https://site.com/": {
			Headers: map[string]string{
				"Content-Security-Policy": "script-src 'self' https://cdn.example.com",
				"Server":                  "nginx",
			},
			Resources: []Entry{
				{"https://cdn.example.com/app.js", "script"},
				{"https://evil.example.net/x.js", "script"},
				{"https://site.com/local.js", "script"},
				{"https://fonts.gstatic.com/f.woff2", "css"},
				{"data:image/png;base64,AAAA", "img"},
			},
			ConsoleErrors: []string{
				"Refused to load the script 'https://evil.example.net/x.js' because it violates the following Content Security Policy directive: \"script-src 'self'\"",
				"Uncaught ReferenceError: foo is not defined",
			},
		},
		"https://site.com/about": {
			Resources: []Entry{
				{"https://api.example.org/data", "fetch"},
				{"https://a.example.com/app.js", "script"},
			},
		},
	}}

	res, err := NewAuditor(testConfig(), obs).Run(context.Background(), []string{"https://site.com/", "https://site.com/about"})
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, 2, res.URLsProcessed)
	assert.Len(t, res.FinalResult, len(Directives))
	assert.Equal(t, []string{"a.example.com", "cdn.example.com", "evil.example.net"}, res.FinalResult[csp.ScriptSrc])
	assert.Equal(t, []string{"fonts.gstatic.com"}, res.FinalResult[csp.FontSrc])
	assert.Equal(t, []string{"api.example.org"}, res.FinalResult[csp.ConnectSrc])
	assert.Empty(t, res.FinalResult[csp.ImgSrc])

	require.Len(t, res.CSPErrors, 1)
	assert.Equal(t, "https://site.com/", res.CSPErrors[0].URL)

	assert.Equal(t, "nginx", res.PerURLHeaders["https://site.com/"]["server"])
	assert.Empty(t, res.PerURLHeaders["https://site.com/about"])

	require.Len(t, res.BlockedResources, 1)
	b := res.BlockedResources[0]
	assert.Equal(t, "https://evil.example.net/x.js", b.URL)
	assert.Equal(t, csp.ScriptSrc, b.Directive)
	assert.Equal(t, "Add evil.example.net to script-src directive", b.Recommendation)

	assert.Contains(t, res.UpdatedCSP, "default-src 'self';")
	assert.Contains(t, res.UpdatedCSP, "https://evil.example.net")
	assert.Contains(t, res.UpdatedCSP, "font-src 'self' https://fonts.gstatic.com;")
	assert.NotContains(t, res.UpdatedCSP, "media-src")
}

func TestRun_DefaultSrcFallback(t *testing.T) {
	obs := &fakeObserver{pages: map[string]*Observation{
		"https://site.com/": {
			Headers:   map[string]string{"content-security-policy": "default-src 'self'"},
			Resources: []Entry{{"https://img.cdn.com/a.png", "img"}},
		},
	}}
	res, err := NewAuditor(testConfig(), obs).Run(context.Background(), []string{"https://site.com/"})
	require.NoError(t, err)
	require.Len(t, res.BlockedResources, 1)
	assert.Equal(t, csp.ImgSrc, res.BlockedResources[0].Directive)
	assert.Equal(t, "img", res.BlockedResources[0].Type)
}

func TestRun_HostsIgnoreCase(t *testing.T) {
	obs := &fakeObserver{pages: map[string]*Observation{
		"https://site.com/": {
			Headers: map[string]string{"content-security-policy": "script-src https://cdn.example.com"},
			Resources: []Entry{
				{"https://Site.com/local.js", "script"},
				{"https://CDN.Example.com/app.js", "script"},
			},
		},
	}}
	res, err := NewAuditor(testConfig(), obs).Run(context.Background(), []string{"https://site.com/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cdn.example.com"}, res.FinalResult[csp.ScriptSrc])
	assert.Empty(t, res.BlockedResources)
}

func TestRun_CapsURLs(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRuntimeURLs = 2
	obs := &fakeObserver{pages: map[string]*Observation{
		"https://a.com/": {}, "https://b.com/": {}, "https://c.com/": {},
	}}
	res, err := NewAuditor(cfg, obs).Run(context.Background(), []string{"https://a.com/", "https://b.com/", "https://c.com/"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.URLsProcessed)
	assert.Equal(t, []string{"https://a.com/", "https://b.com/"}, obs.calls)
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	obs := &fakeObserver{pages: map[string]*Observation{"https://ok.com/": {}}}
	res, err := NewAuditor(testConfig(), obs).Run(context.Background(), []string{"https://gone.com/", "https://ok.com/"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Failures["https://gone.com/"], "ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, "default-src 'self';", res.UpdatedCSP)
}

func TestRun_AllFail(t *testing.T) {
	res, err := NewAuditor(testConfig(), &fakeObserver{}).Run(context.Background(), []string{"https://gone.com/"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	obs := &fakeObserver{pages: map[string]*Observation{"https://a.com/": {}}}
	_, err := NewAuditor(testConfig(), obs).Run(ctx, []string{"https://a.com/"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, obs.calls)
}
