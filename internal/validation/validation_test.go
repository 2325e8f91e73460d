package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateVideoID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid id", id: "dQw4w9WgXcQ", wantErr: false},
		{name: "valid id with underscore and dash", id: "a_b-c_d-e_f", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "too short", id: "dQw4w9WgXc", wantErr: true},
		{name: "too long", id: "dQw4w9WgXcQQ", wantErr: true},
		{name: "illegal characters", id: "dQw4w9WgX!Q", wantErr: true},
		{name: "whitespace", id: "dQw4w9Wg cQ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateVideoID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChannelID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid id", id: "UC1234567890abcdefghijkl", wantErr: false},
		{name: "valid id with dash", id: "UC_x5XG1OV2P6uZZ5FSM9Ttw", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "missing UC prefix", id: "XX1234567890abcdefghijkl", wantErr: true},
		{name: "too short", id: "UC1234567890abcdefghijk", wantErr: true},
		{name: "too long", id: "UC1234567890abcdefghijklm", wantErr: true},
		{name: "illegal characters", id: "UC1234567890abcdefghij!l", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateChannelID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
