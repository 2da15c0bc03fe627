package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRRType_IsValid(t *testing.T) {
	for _, v := range []RRType{RRTypeA, RRTypeAAAA, RRTypeCNAME, RRTypeNS} {
		assert.True(t, v.IsValid(), v.String())
	}
	for _, v := range []RRType{0, 3, 5, 16, 255} {
		assert.False(t, v.IsValid(), "code %d", uint8(v))
	}
}

func TestRRType_Codes(t *testing.T) {
	assert.Equal(t, uint8(8), uint8(RRTypeA))
	assert.Equal(t, uint8(4), uint8(RRTypeAAAA))
	assert.Equal(t, uint8(2), uint8(RRTypeCNAME))
	assert.Equal(t, uint8(1), uint8(RRTypeNS))
}

func TestRRType_String(t *testing.T) {
	cases := []struct {
		t    RRType
		want string
	}{
		{RRTypeA, "A"}, {RRTypeAAAA, "AAAA"}, {RRTypeCNAME, "CNAME"}, {RRTypeNS, "NS"},
		{0, "UNKNOWN(0)"}, {3, "UNKNOWN(3)"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.t.String())
	}
}

func TestParseRRType(t *testing.T) {
	cases := []struct {
		input   string
		want    RRType
		wantErr bool
	}{
		{"A", RRTypeA, false},
		{"aaaa", RRTypeAAAA, false},
		{" Cname ", RRTypeCNAME, false},
		{"ns", RRTypeNS, false},
		{"MX", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRRType(tc.input)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedRRType))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
