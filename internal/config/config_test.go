package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/picshrink/internal/codec"
	"github.com/backmassage/picshrink/internal/naming"
)

func validBase() Config {
	c := Default()
	c.InputDir = "/photos/in"
	c.OutputDir = "/photos/out"
	return c
}

func TestDefaultValidates(t *testing.T) {
	c := validBase()
	require.NoError(t, c.Validate())
}

func TestValidateRequiresPaths(t *testing.T) {
	c := Default()
	assert.Error(t, c.Validate())

	c.InputDir = "/photos/in"
	assert.Error(t, c.Validate(), "missing output dir without overwrite")
}

func TestOverwriteResolvesOutputToInput(t *testing.T) {
	c := Default()
	c.InputDir = "/photos"
	c.Overwrite = true
	require.NoError(t, c.Validate())
	assert.Equal(t, "/photos", c.OutputDir)
}

func TestOverwriteRejectsExplicitOutput(t *testing.T) {
	c := Default()
	c.InputDir = "/photos"
	c.OutputDir = "/elsewhere"
	c.Overwrite = true
	assert.Error(t, c.Validate())
}

func TestOverwriteAndFlattenExclusive(t *testing.T) {
	c := Default()
	c.InputDir = "/photos"
	c.Overwrite = true
	c.Flatten = true
	assert.Error(t, c.Validate())
}

func TestValidateFormats(t *testing.T) {
	c := validBase()
	c.Format = "sprocket"
	assert.Error(t, c.Validate())

	c = validBase()
	c.Format = "png"
	c.FallbackFormat = "png"
	assert.Error(t, c.Validate(), "fallback must differ from target")

	c = validBase()
	c.FallbackFormat = "original"
	assert.Error(t, c.Validate())

	c = validBase()
	c.Format = "original"
	c.FallbackFormat = "png"
	assert.NoError(t, c.Validate())
}

func TestValidateQualityRange(t *testing.T) {
	for _, q := range []int{0, -3, 101} {
		c := validBase()
		c.Quality = q
		assert.Errorf(t, c.Validate(), "quality %d", q)
	}
	c := validBase()
	c.Quality = 1
	assert.NoError(t, c.Validate())
}

func TestValidateWorkerBounds(t *testing.T) {
	c := validBase()
	c.MinWorkers = 4
	c.MaxWorkers = 2
	assert.Error(t, c.Validate())

	c = validBase()
	c.MinWorkers = 2
	c.MaxWorkers = 0 // derived later
	assert.NoError(t, c.Validate())
}

func TestValidateFlattenStrategy(t *testing.T) {
	c := validBase()
	c.FlattenStrategy = "mangle"
	assert.Error(t, c.Validate())

	c = validBase()
	c.FlattenStrategy = "path"
	require.NoError(t, c.Validate())
	assert.Equal(t, naming.StrategyPath, c.Strategy())

	c.FlattenStrategy = "hash"
	assert.Equal(t, naming.StrategyHash, c.Strategy())
}

func TestValidateBackground(t *testing.T) {
	c := validBase()
	c.Background = "white"
	assert.Error(t, c.Validate())

	c = validBase()
	c.Background = "#00ff00"
	require.NoError(t, c.Validate())
	bg := c.BackgroundColor()
	assert.EqualValues(t, 255, bg.G)
}

func TestValidatePathsNesting(t *testing.T) {
	c := validBase()
	assert.Error(t, c.ValidatePaths("/a/in", "/a/in/out"))
	assert.Error(t, c.ValidatePaths("/a/in", "/a/in"))
	assert.NoError(t, c.ValidatePaths("/a/in", "/a/inbox"))
	assert.NoError(t, c.ValidatePaths("/a/in", "/a/out"))

	c.Overwrite = true
	assert.NoError(t, c.ValidatePaths("/a/in", "/a/in"))
}

func TestExtSets(t *testing.T) {
	c := validBase()
	c.AllowExts = []string{"jpg", ".PNG", " webp "}
	set := c.AllowSet()
	assert.True(t, set[".jpg"])
	assert.True(t, set[".png"])
	assert.True(t, set[".webp"])
	assert.False(t, set[".gif"])

	c.AllowExts = nil
	assert.Nil(t, c.AllowSet())
}

func TestNormalizeDirArg(t *testing.T) {
	assert.Equal(t, "/a/b", NormalizeDirArg("/a/b/"))
	assert.Equal(t, "/a/b", NormalizeDirArg("/a/b//"))
	assert.Equal(t, "/", NormalizeDirArg("/"))
}

func TestFormatAccessors(t *testing.T) {
	c := validBase()
	assert.Equal(t, codec.JPEG, c.TargetFormat())
	assert.Equal(t, codec.PNG, c.FallbackTarget())
}
