package asset_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/go-assets/internal/asset"
)

func TestValidateAccepts(t *testing.T) {
	cases := []struct {
		filename string
		size     int64
		want     asset.Format
	}{
		{"cube.stl", 2048, asset.FormatSTL},
		{"part.OBJ", 500, asset.FormatOBJ},
		{"Bracket.StL", 1, asset.FormatSTL},
		{"my.model.v2.obj", 10, asset.FormatOBJ},
		{"limit.stl", asset.MaxSize, asset.FormatSTL},
	}
	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			got, err := asset.Validate(tc.filename, tc.size)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateMissingPayload(t *testing.T) {
	for _, tc := range []struct {
		filename string
		size     int64
	}{
		{"", 10},
		{"cube.stl", 0},
		{"cube.stl", -1},
	} {
		_, err := asset.Validate(tc.filename, tc.size)
		assert.ErrorIs(t, err, asset.ErrMissingPayload, "Validate(%q, %d)", tc.filename, tc.size)
		assert.NotErrorIs(t, err, asset.ErrUnsupportedFormat)
	}
}

func TestValidateUnsupportedFormat(t *testing.T) {
	cases := map[string]string{
		"drawing.dxf":     "dxf",
		"model.":          "",
		"README":          "",
		"scene.STEP":      "step",
		"archive.stl.zip": "zip",
	}
	for filename, actual := range cases {
		_, err := asset.Validate(filename, 10)
		require.ErrorIs(t, err, asset.ErrUnsupportedFormat, filename)

		var ufe *asset.UnsupportedFormatError
		require.True(t, errors.As(err, &ufe))
		assert.Equal(t, actual, ufe.Actual, filename)
	}
}

func TestValidatePayloadTooLarge(t *testing.T) {
	_, err := asset.Validate("huge.obj", asset.MaxSize+1)
	require.ErrorIs(t, err, asset.ErrPayloadTooLarge)

	var ptl *asset.PayloadTooLargeError
	require.True(t, errors.As(err, &ptl))
	assert.Equal(t, int64(104857601), ptl.Actual)
	assert.Equal(t, int64(104857600), ptl.Limit)
	assert.Contains(t, err.Error(), "100 MiB")
}

func TestPayloadTooLargeUnknownSize(t *testing.T) {
	err := &asset.PayloadTooLargeError{Actual: asset.MaxSize + 1, Limit: asset.MaxSize, Partial: true}
	assert.Equal(t, "payload too large: exceeds the 100 MiB limit", err.Error())

	err = &asset.PayloadTooLargeError{Actual: -1, Limit: asset.MaxSize}
	assert.NotContains(t, err.Error(), "EiB")
	assert.ErrorIs(t, err, asset.ErrPayloadTooLarge)
}

// Size is checked before format: anything over the limit is too large,
// whatever its extension.
func TestValidateSizeCheckedBeforeFormat(t *testing.T) {
	for _, name := range []string{"huge.dxf", "README", "model."} {
		_, err := asset.Validate(name, asset.MaxSize+1)
		assert.ErrorIs(t, err, asset.ErrPayloadTooLarge, name)
	}
	_, err := asset.Validate("drawing.dxf", asset.MaxSize)
	assert.ErrorIs(t, err, asset.ErrUnsupportedFormat)
}

func TestParseFormat(t *testing.T) {
	f, ok := asset.ParseFormat("OBJ")
	assert.True(t, ok)
	assert.Equal(t, asset.FormatOBJ, f)
	assert.Equal(t, "model/obj", f.MediaType())

	_, ok = asset.ParseFormat("")
	assert.False(t, ok)
	_, ok = asset.ParseFormat("ply")
	assert.False(t, ok)
}

func TestCleanName(t *testing.T) {
	name, ok := asset.CleanName("  Widget ")
	assert.True(t, ok)
	assert.Equal(t, "Widget", name)

	_, ok = asset.CleanName("   ")
	assert.False(t, ok)

	long := make([]byte, asset.MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, ok = asset.CleanName(string(long))
	assert.False(t, ok)
}
