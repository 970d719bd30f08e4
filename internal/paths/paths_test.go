package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Static
	}{
		{
			name: "xdg data home wins",
			env:  map[string]string{"XDG_DATA_HOME": "/data", "HOME": "/home/u"},
			want: Static{"/data/plugscan/plugins", "/etc/plugscan/plugins", "/usr/lib/plugscan/plugins"},
		},
		{
			name: "relative xdg ignored",
			env:  map[string]string{"XDG_DATA_HOME": "data", "HOME": "/home/u"},
			want: Static{"/home/u/.local/share/plugscan/plugins", "/etc/plugscan/plugins", "/usr/lib/plugscan/plugins"},
		},
		{
			name: "no home",
			env:  map[string]string{},
			want: Static{"/etc/plugscan/plugins", "/usr/lib/plugscan/plugins"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Default("plugscan", envFrom(tt.env)))
		})
	}
}

func TestStaticRootsReturnsCopy(t *testing.T) {
	s := Static{"/a", "/b"}
	roots := s.Roots()
	roots[0] = "/changed"
	assert.Equal(t, "/a", s[0])
}

func TestClean(t *testing.T) {
	got := Clean([]string{" /a/ ", "", "/b", "/a", "/c/../b", "/d"})
	assert.Equal(t, Static{"/a", "/b", "/d"}, got)
}
