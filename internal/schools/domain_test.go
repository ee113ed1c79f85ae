package schools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Arunika High School", want: "arunika-high-school"},
		{name: "diacritics folded", in: "École Primaire Sénang", want: "ecole-primaire-senang"},
		{name: "punctuation collapsed", in: "SMA  Negeri #1 -- Bandung", want: "sma-negeri-1-bandung"},
		{name: "leading and trailing junk", in: "  ***Harapan Bangsa***  ", want: "harapan-bangsa"},
		{name: "digits kept", in: "SMP 17", want: "smp-17"},
		{name: "nothing usable", in: "!!! ---", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}
