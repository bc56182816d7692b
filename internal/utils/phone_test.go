package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(11) 99999-9999", "5511999999999"},
		{"11 9999-9999", "551199999999"},
		{"5511999999999", "5511999999999"},
		{"+55 11 99999-9999", "5511999999999"},
		{"abc", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanonicalPhone(c.in), "entrada %q", c.in)
	}
}
