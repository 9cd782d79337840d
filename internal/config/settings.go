package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bryanchriswhite/camcorder/internal/logger"
	"gopkg.in/yaml.v3"
)

// Backend names
const (
	BackendGStreamer = "gstreamer"
	BackendSim       = "sim"
)

// Sensor driver names
const (
	SensorV4L2 = "v4l2"
	SensorSim  = "sim"
)

// DeviceProfile names a camera setup: which capability files describe it and
// which drivers talk to it
type DeviceProfile struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	DeviceConfigs []string     `json:"device_configs" yaml:"device_configs"`
	Backend       string       `json:"backend" yaml:"backend"`
	Sensor        SensorConfig `json:"sensor" yaml:"sensor"`
	Strobe        StrobeConfig `json:"strobe" yaml:"strobe"`
	OutputDir     string       `json:"output_dir" yaml:"output_dir"`
}

// SensorConfig selects the sensor control driver
type SensorConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Device string `json:"device" yaml:"device"`
}

// StrobeConfig describes the GPIO line driving the strobe
type StrobeConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Chip    string `json:"chip" yaml:"chip"`
	Line    int    `json:"line" yaml:"line"`
}

// PreviewOutputConfig configures the MJPEG preview served over HTTP
type PreviewOutputConfig struct {
	Width   int  `json:"width" yaml:"width"`
	Height  int  `json:"height" yaml:"height"`
	FPS     int  `json:"fps" yaml:"fps"`
	Quality int  `json:"quality" yaml:"quality"`
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Overlay stamps the recording status onto preview frames
	Overlay bool `json:"overlay" yaml:"overlay"`
}

// Settings is the application configuration
type Settings struct {
	ServerPort         int                 `json:"server_port" yaml:"server_port"`
	LogLevel           string              `json:"log_level" yaml:"log_level"`
	StateChangeTimeout int                 `json:"state_change_timeout_ms,omitempty" yaml:"state_change_timeout_ms,omitempty"`
	Preview            PreviewOutputConfig `json:"preview" yaml:"preview"`
	PreviewWindow      bool                `json:"preview_window" yaml:"preview_window"`
	InhibitSleep       bool                `json:"inhibit_sleep" yaml:"inhibit_sleep"`

	ActiveProfileID string          `json:"active_profile_id" yaml:"active_profile_id"`
	Profiles        []DeviceProfile `json:"profiles" yaml:"profiles"`
}

// Manager handles the application settings file
type Manager struct {
	path     string
	settings *Settings
	mu       sync.RWMutex
}

// DefaultSettingsPath returns ~/.config/camcorder/config.yaml
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "camcorder", "config.yaml"), nil
}

// NewManager loads the settings file, creating it with defaults when absent
func NewManager(path string) (*Manager, error) {
	if path == "" {
		p, err := DefaultSettingsPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	m := &Manager{path: path}
	log := logger.WithComponent("config")

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		log.Info().Str("path", path).Msg("Settings file not found, creating defaults")
		m.settings = defaultSettings()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default settings: %w", err)
		}
	}

	log.Info().
		Str("path", path).
		Str("profile", m.settings.ActiveProfileID).
		Int("profiles", len(m.settings.Profiles)).
		Msg("Settings loaded")
	return m, nil
}

func defaultProfile() DeviceProfile {
	return DeviceProfile{
		ID:            "default",
		Name:          "Default",
		DeviceConfigs: []string{},
		Backend:       BackendGStreamer,
		Sensor:        SensorConfig{Driver: SensorV4L2, Device: "/dev/video0"},
		Strobe:        StrobeConfig{Chip: "gpiochip0", Line: 0},
		OutputDir:     os.TempDir(),
	}
}

func defaultSettings() *Settings {
	return &Settings{
		ServerPort:   8080,
		LogLevel:     "info",
		InhibitSleep: true,
		Preview: PreviewOutputConfig{
			Width:   640,
			Height:  360,
			FPS:     10,
			Quality: 80,
			Enabled: true,
			Overlay: true,
		},
		ActiveProfileID: "default",
		Profiles:        []DeviceProfile{defaultProfile()},
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}

	s := defaultSettings()
	s.Profiles = nil
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	if len(s.Profiles) == 0 {
		s.Profiles = []DeviceProfile{defaultProfile()}
	}
	if s.ActiveProfileID == "" {
		s.ActiveProfileID = s.Profiles[0].ID
	}
	for i := range s.Profiles {
		if s.Profiles[i].DeviceConfigs == nil {
			s.Profiles[i].DeviceConfigs = []string{}
		}
		if s.Profiles[i].Backend == "" {
			s.Profiles[i].Backend = BackendGStreamer
		}
		if s.Profiles[i].Sensor.Driver == "" {
			s.Profiles[i].Sensor.Driver = SensorV4L2
		}
	}

	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	return nil
}

// Save writes the settings to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

// saveLocked writes the settings; caller holds at least the read lock
func (m *Manager) saveLocked() error {
	log := logger.WithComponent("config")
	s := m.settings
	if s == nil {
		s = defaultSettings()
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		log.Error().Err(err).Str("dir", filepath.Dir(m.path)).Msg("Failed to create settings directory")
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.path).Msg("Failed to write settings")
		return err
	}

	log.Debug().Str("path", m.path).Msg("Settings saved")
	return nil
}

// Get returns a copy of the current settings
func (m *Manager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return defaultSettings()
	}
	s := *m.settings
	s.Profiles = append([]DeviceProfile(nil), m.settings.Profiles...)
	return &s
}

// Path returns the settings file path
func (m *Manager) Path() string {
	return m.path
}

// SetPort sets the server port
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.ServerPort = port
	return m.saveLocked()
}

// SetLogLevel sets the log level
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.LogLevel = level
	return m.saveLocked()
}

// ActiveProfile returns a copy of the active device profile
func (m *Manager) ActiveProfile() DeviceProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.settings.Profiles {
		if p.ID == m.settings.ActiveProfileID {
			return p
		}
	}
	return m.settings.Profiles[0]
}

// SetActiveProfile switches the active device profile
func (m *Manager) SetActiveProfile(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexLocked(id) < 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	m.settings.ActiveProfileID = id
	logger.WithComponent("config").Info().Str("profile_id", id).Msg("Switched device profile")
	return m.saveLocked()
}

// CreateProfile adds a device profile derived from the defaults
func (m *Manager) CreateProfile(name string, deviceConfigs ...string) (DeviceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := defaultProfile()
	p.ID = m.profileIDLocked(name)
	p.Name = name
	p.DeviceConfigs = append([]string{}, deviceConfigs...)
	m.settings.Profiles = append(m.settings.Profiles, p)

	logger.WithComponent("config").Info().
		Str("profile_id", p.ID).
		Str("profile_name", name).
		Msg("Created device profile")
	return p, m.saveLocked()
}

// UpdateProfile replaces an existing device profile
func (m *Manager) UpdateProfile(p DeviceProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(p.ID)
	if i < 0 {
		return fmt.Errorf("profile not found: %s", p.ID)
	}
	m.settings.Profiles[i] = p
	return m.saveLocked()
}

// DeleteProfile removes a device profile; the default profile stays
func (m *Manager) DeleteProfile(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "default" {
		return fmt.Errorf("cannot delete the default profile")
	}
	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	m.settings.Profiles = append(m.settings.Profiles[:i], m.settings.Profiles[i+1:]...)
	if m.settings.ActiveProfileID == id {
		m.settings.ActiveProfileID = "default"
	}
	return m.saveLocked()
}

func (m *Manager) indexLocked(id string) int {
	for i, p := range m.settings.Profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// profileIDLocked derives a unique slug from name
func (m *Manager) profileIDLocked(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.ReplaceAll(name, " ", "-")) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if base == "" {
		base = "profile"
	}
	id := base
	for n := 1; m.indexLocked(id) >= 0; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}
