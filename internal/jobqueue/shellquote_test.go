package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuoteSingle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/tmp/a", `'/tmp/a'`},
		{"with spaces in name", `'with spaces in name'`},
		{"it's quoted", `'it'\''s quoted'`},
		{"$(rm -rf /)", `'$(rm -rf /)'`},
		{"a;b&c|d`e`", "'a;b&c|d`e`'"},
		{"", "''"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, shellQuoteSingle(c.in))
	}
}

func TestExpandTemplate(t *testing.T) {
	got := expandTemplate("test -f {} && rm -f {}", "/tmp/x")
	assert.Equal(t, "test -f '/tmp/x' && rm -f '/tmp/x'", got)
}

func TestExpandTemplateNoToken(t *testing.T) {
	got := expandTemplate("true", "/tmp/x")
	assert.Equal(t, "true", got)
}
