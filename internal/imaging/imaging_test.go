package imaging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgueth/campaign-automation/internal/campaign/campaigntest"
)

func TestFit_ShrinksLandscape(t *testing.T) {
	img, err := Fit(campaigntest.PNG(200, 100), "image/png", 50)
	require.NoError(t, err)

	w, h, err := Size(img.Data)
	require.NoError(t, err)
	assert.Equal(t, 50, w)
	assert.Equal(t, 25, h)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestFit_ShrinksPortrait(t *testing.T) {
	img, err := Fit(campaigntest.PNG(40, 160), "image/png", 80)
	require.NoError(t, err)

	w, h, err := Size(img.Data)
	require.NoError(t, err)
	assert.Equal(t, 20, w)
	assert.Equal(t, 80, h)
}

func TestFit_SmallImageUnchanged(t *testing.T) {
	data := campaigntest.PNG(10, 10)
	img, err := Fit(data, "image/png", 1024)
	require.NoError(t, err)
	assert.Equal(t, data, img.Data)
}

func TestFit_PassThrough(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	img, err := Fit(svg, "image/svg+xml", 10)
	require.NoError(t, err)
	assert.Equal(t, svg, img.Data)

	junk := []byte("not an image")
	img, err = Fit(junk, "image/png", 10)
	require.NoError(t, err)
	assert.Equal(t, junk, img.Data)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.jpg")
	require.NoError(t, os.WriteFile(path, campaigntest.PNG(3, 3), 0644))

	img, err := Load(path, 512)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"), 512)
	assert.Error(t, err)
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", MIMEType("a.PNG"))
	assert.Equal(t, "image/jpeg", MIMEType("a.jpeg"))
	assert.Equal(t, "image/svg+xml", MIMEType("a.svg"))
}
