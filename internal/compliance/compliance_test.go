package compliance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgueth/campaign-automation/internal/campaign/campaigntest"
	"github.com/jgueth/campaign-automation/internal/imaging"
)

type stubDetector struct {
	det   Detection
	err   error
	calls int
}

func (s *stubDetector) DetectLogo(_ context.Context, creative, logo imaging.Image) (Detection, error) {
	s.calls++
	return s.det, s.err
}

func target(t *testing.T) Target {
	dir := t.TempDir()
	img := filepath.Join(dir, "c_serum_de_1x1.png")
	logo := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(img, campaigntest.PNG(8, 8), 0644))
	require.NoError(t, os.WriteFile(logo, campaigntest.PNG(4, 4), 0644))
	return Target{ProductID: "serum", Ratio: "1x1", MarketID: "de", Path: img, LogoPath: logo}
}

func TestChecker_Check(t *testing.T) {
	tests := []struct {
		name   string
		det    Detection
		status Status
		detail string
	}{
		{"passes above threshold", Detection{Found: true, Confidence: 0.9, Location: "bottom-right"}, StatusPassed, ""},
		{"fails when absent", Detection{Found: false}, StatusFailed, "logo not detected"},
		{"fails below threshold", Detection{Found: true, Confidence: 0.3}, StatusFailed, "logo confidence 0.30 below threshold 0.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Checker{Detector: &stubDetector{det: tt.det}, MinConfidence: 0.5}
			v, err := c.Check(context.Background(), target(t))
			require.NoError(t, err)
			assert.Equal(t, tt.status, v.Status)
			assert.Equal(t, tt.detail, v.Detail)
			assert.Equal(t, "de", v.MarketID)
		})
	}
}

func TestChecker_DetectorErrorPropagates(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := &Checker{Detector: &stubDetector{err: boom}}
	_, err := c.Check(context.Background(), target(t))
	assert.ErrorIs(t, err, boom)
}

func TestChecker_MissingImage(t *testing.T) {
	det := &stubDetector{}
	tg := target(t)
	tg.Path = filepath.Join(t.TempDir(), "absent.png")

	_, err := (&Checker{Detector: det}).Check(context.Background(), tg)
	assert.Error(t, err)
	assert.Zero(t, det.calls)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Verdict{
		{Status: StatusPassed}, {Status: StatusPassed}, {Status: StatusFailed}, {Status: StatusSkipped},
	})
	assert.Equal(t, Summary{Total: 3, Passed: 2, Failed: 1, Skipped: 1}, s)
}

func TestClassify(t *testing.T) {
	auto, manual := Classify([]string{"legal_disclaimer", "logo_presence", "brand_colors", "logo_presence"})
	assert.Equal(t, []string{"logo_presence"}, auto)
	assert.Equal(t, []string{"brand_colors", "legal_disclaimer"}, manual)
}
