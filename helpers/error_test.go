package helpers

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("disk full")
	cases := []struct {
		name   string
		input  []error
		expect string
	}{
		{"nil", nil, ""},
		{"all-nil", []error{nil, nil}, ""},
		{"one", []error{nil, errors.Annotate(sentinel, "spool")}, "spool: disk full"},
		{"many", []error{errors.New("a"), nil, errors.New("b")}, "a\nb"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			err := FoldErrors(c.input)
			if c.expect == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, c.expect)
		})
	}
	assert.Equal(t, sentinel, errors.Cause(FoldErrors([]error{errors.Annotate(sentinel, "x")})))
}
