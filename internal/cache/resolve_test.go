package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "go names", path: "/Dimensions/Height", want: "/ds/height"},
		{name: "wire names", path: "ds/length", want: "/ds/length"},
		{name: "slice index", path: "/tags/3", want: "/tags/3"},
		{name: "empty", path: "/", want: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath[Dinosaur](tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePath_MapsAndInterfaces(t *testing.T) {
	got, err := ResolvePath[JurassicWorld]("/Dinosaurs/rex/Dimensions/weight")
	require.NoError(t, err)
	assert.Equal(t, "/dinosaurs/rex/ds/weight", got)

	got, err = ResolvePath[*Document]("/extra/Anything/Goes")
	require.NoError(t, err)
	assert.Equal(t, "/extra/Anything/Goes", got)

	got, err = ResolvePath[Document]("/CreatedAt")
	require.NoError(t, err)
	assert.Equal(t, "/created_at", got)
}

func TestResolvePath_Errors(t *testing.T) {
	_, err := ResolvePath[Dinosaur]("/wings")
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = ResolvePath[Dinosaur]("/tags/-1")
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = ResolvePath[Dinosaur]("/name/first")
	assert.ErrorIs(t, err, ErrNotContainer)
}
