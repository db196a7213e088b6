package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_SetDefaults(t *testing.T) {
	var o Options
	o.setDefaults()

	assert.Equal(t, BackendFsnotify, o.Backend)
	assert.Equal(t, defaultQueueSize, o.QueueSize)
	assert.Equal(t, OverflowDropOldest, o.Overflow)
	assert.Equal(t, defaultBlockTimeout, o.BlockTimeout)
	assert.Zero(t, o.Debounce)
	assert.Equal(t, DefaultIgnorePatterns, o.IgnorePatterns)
}

func TestOptions_ExplicitEmptyIgnore(t *testing.T) {
	o := Options{IgnorePatterns: []string{}, QueueSize: 8, BlockTimeout: time.Second}
	o.setDefaults()

	assert.Empty(t, o.IgnorePatterns)
	assert.Equal(t, 8, o.QueueSize)
	assert.Equal(t, time.Second, o.BlockTimeout)
}

func TestParseOverflow(t *testing.T) {
	tests := []struct {
		in      string
		want    Overflow
		wantErr bool
	}{
		{"", OverflowDropOldest, false},
		{"drop-oldest", OverflowDropOldest, false},
		{"DROP_OLDEST", OverflowDropOldest, false},
		{"block", OverflowBlock, false},
		{"unbounded", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOverflow(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIgnoreMatcher(t *testing.T) {
	m, err := newIgnoreMatcher([]string{".git", "node_modules", "*.swp", "build/**"})
	require.NoError(t, err)

	root := "/p/.bluekit/kits"
	tests := []struct {
		path string
		want bool
	}{
		{"/p/.bluekit/kits", false},
		{"/p/.bluekit/kits/a.md", false},
		{"/p/.bluekit/kits/.git", true},
		{"/p/.bluekit/kits/.git/HEAD", true},
		{"/p/.bluekit/kits/sub/node_modules/x.md", true},
		{"/p/.bluekit/kits/notes.md.swp", true},
		{"/p/.bluekit/kits/build/out/a.md", true},
		{"/p/.bluekit/kits/builder/a.md", false},
		{"/elsewhere/.git", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.match(root, tt.path))
		})
	}
}

func TestIgnoreMatcher_NilAndEmpty(t *testing.T) {
	var nilMatcher *ignoreMatcher
	assert.False(t, nilMatcher.match("/p", "/p/.git"))

	m, err := newIgnoreMatcher([]string{"", "  "})
	require.NoError(t, err)
	assert.False(t, m.match("/p", "/p/.git"))
}
