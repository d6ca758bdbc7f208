package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdinal(t *testing.T) {
	cases := map[int]string{
		1:   "1st",
		2:   "2nd",
		3:   "3rd",
		4:   "4th",
		10:  "10th",
		11:  "11th",
		12:  "12th",
		13:  "13th",
		20:  "20th",
		21:  "21st",
		22:  "22nd",
		23:  "23rd",
		101: "101st",
		102: "102nd",
		111: "111th",
		113: "113th",
	}
	for n, want := range cases {
		assert.Equal(t, want, Ordinal(n), "n=%d", n)
	}
}
