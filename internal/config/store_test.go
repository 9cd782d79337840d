package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiledDefaultsParse(t *testing.T) {
	for _, se := range Schema {
		_, err := parseValue(se.Kind, se.Default)
		assert.NoError(t, err, "%s/%s", se.Category, se.Key)
	}
}

func TestParseValues(t *testing.T) {
	t.Run("IntRange", func(t *testing.T) {
		r, err := parseIntRange("1, 10")
		require.NoError(t, err)
		assert.Equal(t, IntRange{Min: 1, Max: 10, Default: 1}, r)

		r, err = parseIntRange("1,10,5")
		require.NoError(t, err)
		assert.Equal(t, 5, r.Default)

		_, err = parseIntRange("10,1")
		assert.Error(t, err)
		_, err = parseIntRange("1,10,11")
		assert.Error(t, err)
		_, err = parseIntRange("1")
		assert.Error(t, err)
	})

	t.Run("IntArray", func(t *testing.T) {
		a, err := parseIntArray("3, 1, 2 || 2")
		require.NoError(t, err)
		assert.Equal(t, []int{3, 1, 2}, a.Values)
		assert.Equal(t, 2, a.Default)

		a, err = parseIntArray("7,8")
		require.NoError(t, err)
		assert.Equal(t, 7, a.Default)

		_, err = parseIntArray("1, x")
		assert.Error(t, err)
	})

	t.Run("IntPairArray", func(t *testing.T) {
		a, err := parseIntPairArray("1280x720, 640x480 || 640x480")
		require.NoError(t, err)
		assert.Equal(t, []IntPair{{1280, 720}, {640, 480}}, a.Pairs)
		assert.Equal(t, IntPair{640, 480}, a.Default)

		_, err = parseIntPairArray("1280x720 || 1x1")
		assert.Error(t, err)
		_, err = parseIntPairArray("1280*720")
		assert.Error(t, err)
	})

	t.Run("StringArray", func(t *testing.T) {
		a, err := parseStringArray("a, b, c || b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, a.Values)
		assert.Equal(t, "b", a.Default)
	})

	t.Run("Element", func(t *testing.T) {
		d, err := parseElement("v4l2src | device=/dev/video1 | num-buffers=10")
		require.NoError(t, err)
		assert.Equal(t, "v4l2src", d.Factory)
		assert.Equal(t, []Property{{Name: "num-buffers", Value: 10}}, d.IntProperties())
		assert.Equal(t, []Property{{Name: "device", Value: "/dev/video1"}}, d.StringProperties())

		_, err = parseElement(" | a=1")
		assert.Error(t, err)
		_, err = parseElement("queue | leaky")
		assert.Error(t, err)
	})
}

func TestStoreDefaulting(t *testing.T) {
	s := FromMap(map[string]map[string]string{
		CategoryGeneral:    {"StateChangeTimeout": "250"},
		CategoryVideoInput: {"FPS": "not numbers"},
		CategoryCapability: {"VideoCodecs": "1, 5, 6 || 5"},
		"Vendor":           {"Notes": "prototype board"},
	})

	tests := []struct {
		name      string
		get       func() (any, bool, error)
		want      any
		defaulted bool
	}{
		{
			name:      "configured int",
			get:       func() (any, bool, error) { return s.Int(CategoryGeneral, "StateChangeTimeout") },
			want:      250,
			defaulted: false,
		},
		{
			name:      "bad value falls back",
			get:       func() (any, bool, error) { return s.IntArray(CategoryVideoInput, "FPS") },
			want:      IntArray{Values: []int{15, 24, 30}, Default: 30},
			defaulted: true,
		},
		{
			name:      "missing key falls back",
			get:       func() (any, bool, error) { return s.IntArray(CategoryCapability, "AudioCodecs") },
			want:      IntArray{Values: []int{2}, Default: 2},
			defaulted: true,
		},
		{
			name:      "configured array",
			get:       func() (any, bool, error) { return s.IntArray(CategoryCapability, "VideoCodecs") },
			want:      IntArray{Values: []int{1, 5, 6}, Default: 5},
			defaulted: false,
		},
		{
			name:      "unknown configured key kept as string",
			get:       func() (any, bool, error) { return s.String("Vendor", "Notes") },
			want:      "prototype board",
			defaulted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, defaulted, err := tt.get()
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.defaulted, defaulted)
		})
	}

	t.Run("unknown key", func(t *testing.T) {
		_, _, err := s.Int("Nope", "Missing")
		assert.ErrorIs(t, err, camerr.ErrNotFound)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		_, _, err := s.Int(CategoryVideoInput, "FPS")
		assert.ErrorIs(t, err, camerr.ErrInvalidArgument)
	})

	t.Run("case insensitive", func(t *testing.T) {
		v, _, err := s.Int("general", "statechangetimeout")
		require.NoError(t, err)
		assert.Equal(t, 250, v)
	})
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "camera.yaml")
	device := filepath.Join(dir, "device.yaml")

	require.NoError(t, os.WriteFile(main, []byte(`
General:
  StateChangeTimeout: 1000
  DisabledAttributes: [strobe-mode, detect-mode]
VideoInput:
  VideoSource: "videotestsrc | is-live=1 | pattern=ball"
  PreviewResolution: "1280x720, 640x480 || 1280x720"
`), 0644))
	require.NoError(t, os.WriteFile(device, []byte(`
General:
  StateChangeTimeout: 2000
Capability:
  Containers: "0, 1, 2"
`), 0644))

	s, err := Load(main, device)
	require.NoError(t, err)
	assert.Equal(t, []string{main, device}, s.Sources())

	timeout, defaulted, err := s.Int(CategoryGeneral, "StateChangeTimeout")
	require.NoError(t, err)
	assert.False(t, defaulted)
	assert.Equal(t, 2000, timeout)

	disabled, _, err := s.StringArray(CategoryGeneral, "DisabledAttributes")
	require.NoError(t, err)
	assert.Equal(t, []string{"strobe-mode", "detect-mode"}, disabled.Values)

	src, _, err := s.Element(CategoryVideoInput, "VideoSource")
	require.NoError(t, err)
	assert.Equal(t, "videotestsrc", src.Factory)
	assert.Len(t, src.Properties, 2)

	res, _, err := s.IntPairArray(CategoryVideoInput, "PreviewResolution")
	require.NoError(t, err)
	assert.Equal(t, IntPair{1280, 720}, res.Default)

	containers, defaulted, err := s.IntArray(CategoryCapability, "Containers")
	require.NoError(t, err)
	assert.False(t, defaulted)
	assert.Equal(t, 0, containers.Default)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestSettingsManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, 8080, m.Get().ServerPort)
	assert.Equal(t, "default", m.ActiveProfile().ID)

	require.NoError(t, m.SetPort(9090))
	p, err := m.CreateProfile("Bench Rig", "/etc/camcorder/bench.yaml")
	require.NoError(t, err)
	assert.Equal(t, "bench-rig", p.ID)
	require.NoError(t, m.SetActiveProfile(p.ID))

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, reloaded.Get().ServerPort)
	assert.Equal(t, "bench-rig", reloaded.ActiveProfile().ID)
	assert.Equal(t, []string{"/etc/camcorder/bench.yaml"}, reloaded.ActiveProfile().DeviceConfigs)

	dup, err := reloaded.CreateProfile("Bench Rig")
	require.NoError(t, err)
	assert.Equal(t, "bench-rig-1", dup.ID)

	assert.Error(t, reloaded.DeleteProfile("default"))
	require.NoError(t, reloaded.DeleteProfile("bench-rig"))
	assert.Equal(t, "default", reloaded.ActiveProfile().ID)
	assert.Error(t, reloaded.SetActiveProfile("bench-rig"))
}
