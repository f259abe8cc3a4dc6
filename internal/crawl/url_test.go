package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/Path",
			want: "https://example.com/Path",
		},
		{
			name: "strips default http port",
			in:   "http://example.com:80/a",
			want: "http://example.com/a",
		},
		{
			name: "strips default https port",
			in:   "https://example.com:443/a",
			want: "https://example.com/a",
		},
		{
			name: "keeps explicit non-default port",
			in:   "http://example.com:8080/a",
			want: "http://example.com:8080/a",
		},
		{
			name: "sorts query parameters",
			in:   "https://example.com/search?b=2&a=1",
			want: "https://example.com/search?a=1&b=2",
		},
		{
			name: "drops fragment",
			in:   "https://example.com/page#section",
			want: "https://example.com/page",
		},
		{
			name:    "rejects relative url",
			in:      "/just/a/path",
			wantErr: true,
		},
		{
			name:    "rejects non-http scheme",
			in:      "ftp://example.com/file",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURLEquivalentKeys(t *testing.T) {
	t.Parallel()

	a, err := NormalizeURL("https://A.test/x?q=1&p=2#frag")
	require.NoError(t, err)
	b, err := NormalizeURL("https://a.test:443/x?p=2&q=1")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	host, err := HostOf("https://News.Example.com:8443/a/b")
	require.NoError(t, err)
	require.Equal(t, "news.example.com", host)

	_, err = HostOf("not a url at all\x7f")
	require.Error(t, err)
}
