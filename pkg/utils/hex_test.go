package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockNumber(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    uint64
		wantErr bool
	}{
		{name: "decimal", in: "12345", want: 12345},
		{name: "hex", in: "0x3039", want: 12345},
		{name: "upper prefix", in: "0X3039", want: 12345},
		{name: "padded hash", in: "0x0000000000000000000000000000000000000000000000000000000000000065", want: 101},
		{name: "surrounding space", in: " 42 ", want: 42},
		{name: "empty", in: "", wantErr: true},
		{name: "bare prefix", in: "0x", wantErr: true},
		{name: "letters", in: "abc", wantErr: true},
		{name: "bad hex", in: "0xzz", wantErr: true},
		{name: "negative", in: "-5", wantErr: true},
		{name: "plus sign", in: "+5", wantErr: true},
		{name: "signed hex", in: "0x-5", wantErr: true},
		{name: "overflow", in: "0x1ffffffffffffffff", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBlockNumber(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0xdac1...1ec7", ShortAddress("0xdac17f958d2ee523a2206206994597c13d831ec7"))
	assert.Equal(t, "0xabc", ShortAddress("0xabc"))
}
