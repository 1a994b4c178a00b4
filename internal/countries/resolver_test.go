package countries

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_FromAlpha3(t *testing.T) {
	r := Default()

	code, ok := r.FromAlpha3("usa")
	assert.True(t, ok)
	assert.Equal(t, "USA", code)

	for _, aggregate := range []string{"EUU", "WLD", "LMY", "", "US"} {
		_, ok := r.FromAlpha3(aggregate)
		assert.False(t, ok, aggregate)
	}
}

func TestResolver_FromM49(t *testing.T) {
	r := Default()

	tests := map[string]string{
		"4":   "AFG",
		"004": "AFG",
		"840": "USA",
		"76":  "BRA",
	}
	for in, want := range tests {
		got, ok := r.FromM49(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "0", "1000", "1"} {
		_, ok := r.FromM49(bad)
		assert.False(t, ok, bad)
	}
}

func TestPadM49(t *testing.T) {
	assert.Equal(t, "004", PadM49("4"))
	assert.Equal(t, "076", PadM49("76"))
	assert.Equal(t, "840", PadM49("840"))
}

func TestResolver_FromName(t *testing.T) {
	r := Default()

	tests := map[string]string{
		"United States of America":         "USA",
		"Myanmar (formerly Burma)":         "MMR",
		"Democratic Republic of the Congo": "COD",
		"Côte d'Ivoire":                    "CIV",
		"Korea, Rep.":                      "KOR",
		"Bosnia & Herzegovina":             "BIH",
		"France":                           "FRA",
		"Frence":                           "FRA",
		"Libya":                            "LBY",
		"Tanzania, United Republic of":     "TZA",
		"Holy See":                         "VAT",
		"Lao People's Democratic Republic": "LAO",
	}
	for in, want := range tests {
		got, ok := r.FromName(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "Europe & Central Asia", "World", "Northern Ireland"} {
		_, ok := r.FromName(bad)
		assert.False(t, ok, bad)
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := Default()

	for in, want := range map[string]string{"can": "CAN", "124": "CAN", "Canada": "CAN"} {
		got, ok := r.Resolve(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "united states america", Normalise("The United States of America"))
	assert.Equal(t, "myanmar formerly burma", Normalise("Myanmar (formerly Burma)"))
	assert.Equal(t, "cote d ivoire", Normalise("Côte d’Ivoire"))
	assert.Equal(t, "", Normalise("  "))
}
