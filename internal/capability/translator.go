// Package capability translates between application-facing enum indices and
// the native values a particular camera understands, and answers which codecs
// and containers the device may combine.
package capability

import (
	"fmt"
	"strings"

	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/rs/zerolog"
)

// NoneValue marks an abstract index the device does not support
const NoneValue = -255

// Feature identifies a sensor feature with an enum conversion table
type Feature int

const (
	FeatureWhiteBalance Feature = iota
	FeatureColorTone
	FeatureISO
	FeatureSceneMode
	FeatureFocusMode
	FeatureAFScanRange
	FeatureExposureMode
	FeatureStrobeMode
	FeatureWDR
	FeatureAntiHandshake
	FeatureFaceDetect
	FeatureFlip
	featureCount
)

// featureKeys maps each feature to its CameraControl key
var featureKeys = [featureCount]string{
	FeatureWhiteBalance:  "WhiteBalance",
	FeatureColorTone:     "ColorTone",
	FeatureISO:           "ISO",
	FeatureSceneMode:     "SceneMode",
	FeatureFocusMode:     "FocusMode",
	FeatureAFScanRange:   "AFScanRange",
	FeatureExposureMode:  "ExposureMode",
	FeatureStrobeMode:    "StrobeMode",
	FeatureWDR:           "WDR",
	FeatureAntiHandshake: "AntiHandshake",
	FeatureFaceDetect:    "FaceDetect",
	FeatureFlip:          "Flip",
}

func (f Feature) String() string {
	if f < 0 || f >= featureCount {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return featureKeys[f]
}

// Features returns every feature that can carry a table
func Features() []Feature {
	out := make([]Feature, featureCount)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

// Table maps abstract index (position) to native value. Immutable once built.
type Table struct {
	Feature  Feature
	Category string
	Key      string
	Native   []int
	Default  int
}

// Translator holds the conversion tables and codec lists of one device.
// It is read-only after New and shared by pointer.
type Translator struct {
	store  *config.Store
	tables map[Feature]*Table
	matrix Matrix
	log    *zerolog.Logger
}

// New builds the tables from the CameraControl category. Features whose
// configuration fell back to a compiled default still get a table.
func New(store *config.Store) *Translator {
	return NewWithMatrix(store, DefaultMatrix())
}

// NewWithMatrix is New with a device specific codec/container matrix
func NewWithMatrix(store *config.Store, m Matrix) *Translator {
	t := &Translator{
		store:  store,
		tables: make(map[Feature]*Table),
		matrix: m,
		log:    logger.WithComponent("capability"),
	}
	for _, f := range Features() {
		arr, defaulted, err := store.IntArray(config.CategoryCameraControl, featureKeys[f])
		if err != nil {
			t.log.Warn().Err(err).Str("feature", f.String()).Msg("No conversion table")
			continue
		}
		if len(arr.Values) == 0 {
			continue
		}
		// The "|| n" suffix of a feature table is an abstract index; without
		// one the first entry is the default.
		def := 0
		if e, err := store.Get(config.CategoryCameraControl, featureKeys[f]); err == nil && strings.Contains(e.Raw, "||") {
			def = arr.Default
		}
		if def < 0 || def >= len(arr.Values) {
			def = 0
		}
		t.tables[f] = &Table{
			Feature:  f,
			Category: config.CategoryCameraControl,
			Key:      featureKeys[f],
			Native:   append([]int(nil), arr.Values...),
			Default:  def,
		}
		t.log.Debug().
			Str("feature", f.String()).
			Ints("native", arr.Values).
			Bool("defaulted", defaulted).
			Msg("Loaded conversion table")
	}
	return t
}

// Store returns the configuration the translator was built from
func (t *Translator) Store() *config.Store {
	return t.store
}

// Table returns the conversion table for f, or nil
func (t *Translator) Table(f Feature) *Table {
	return t.tables[f]
}

// ToDevice converts an abstract index to the native value. Unknown features
// and out-of-range indices pass through unchanged.
func (t *Translator) ToDevice(f Feature, abstract int) int {
	tbl, ok := t.tables[f]
	if !ok {
		return abstract
	}
	if abstract < 0 || abstract >= len(tbl.Native) {
		t.log.Warn().
			Str("feature", f.String()).
			Int("abstract", abstract).
			Int("size", len(tbl.Native)).
			Msg("Abstract index out of table bounds, passing through")
		return abstract
	}
	return tbl.Native[abstract]
}

// ToAbstract converts a native value to the first abstract index mapping to
// it. Values with no match pass through unchanged.
func (t *Translator) ToAbstract(f Feature, native int) int {
	tbl, ok := t.tables[f]
	if !ok {
		return native
	}
	for i, v := range tbl.Native {
		if v == native {
			return i
		}
	}
	t.log.Debug().Str("feature", f.String()).Int("native", native).Msg("Native value has no abstract index")
	return native
}

// Available returns the abstract indices the device supports and the default
// among them. When the configured default is unsupported the first supported
// index becomes the default. ok is false when f has no table.
func (t *Translator) Available(f Feature) (indices []int, def int, ok bool) {
	tbl, found := t.tables[f]
	if !found {
		return nil, 0, false
	}
	def = -1
	for i, v := range tbl.Native {
		if v == NoneValue {
			continue
		}
		indices = append(indices, i)
		if i == tbl.Default {
			def = i
		}
	}
	if def < 0 && len(indices) > 0 {
		def = indices[0]
	}
	if def < 0 {
		def = 0
	}
	return indices, def, true
}

// Supported codec lists. defaulted reports that the device configuration did
// not declare the list and the compiled fallback was used.

// SupportedAudioCodecs returns the audio codecs the device declares
func (t *Translator) SupportedAudioCodecs() ([]AudioCodec, AudioCodec, bool) {
	vals, def, defaulted := t.codecList("AudioCodecs", int(audioCodecCount))
	out := make([]AudioCodec, len(vals))
	for i, v := range vals {
		out[i] = AudioCodec(v)
	}
	return out, AudioCodec(def), defaulted
}

// SupportedVideoCodecs returns the video codecs the device declares
func (t *Translator) SupportedVideoCodecs() ([]VideoCodec, VideoCodec, bool) {
	vals, def, defaulted := t.codecList("VideoCodecs", int(videoCodecCount))
	out := make([]VideoCodec, len(vals))
	for i, v := range vals {
		out[i] = VideoCodec(v)
	}
	return out, VideoCodec(def), defaulted
}

// SupportedImageCodecs returns the image codecs the device declares
func (t *Translator) SupportedImageCodecs() ([]ImageCodec, ImageCodec, bool) {
	vals, def, defaulted := t.codecList("ImageCodecs", int(imageCodecCount))
	out := make([]ImageCodec, len(vals))
	for i, v := range vals {
		out[i] = ImageCodec(v)
	}
	return out, ImageCodec(def), defaulted
}

// SupportedContainers returns the containers the device declares
func (t *Translator) SupportedContainers() ([]Container, Container, bool) {
	vals, def, defaulted := t.codecList("Containers", int(containerCount))
	out := make([]Container, len(vals))
	for i, v := range vals {
		out[i] = Container(v)
	}
	return out, Container(def), defaulted
}

// codecList reads a Capability list, dropping indices the engine does not know.
// A defaulted list is narrowed to its default entry.
func (t *Translator) codecList(key string, count int) ([]int, int, bool) {
	arr, defaulted, err := t.store.IntArray(config.CategoryCapability, key)
	if err != nil {
		t.log.Warn().Err(err).Str("key", key).Msg("Capability list unavailable")
		return []int{0}, 0, true
	}
	if defaulted {
		t.log.Warn().Str("key", key).Int("default", arr.Default).Msg("Capability list not configured, using compiled default only")
		return []int{arr.Default}, arr.Default, true
	}

	var out []int
	def := -1
	for _, v := range arr.Values {
		if v < 0 || v >= count {
			t.log.Warn().Str("key", key).Int("value", v).Msg("Unknown capability index ignored")
			continue
		}
		out = append(out, v)
		if v == arr.Default {
			def = v
		}
	}
	if len(out) == 0 {
		return []int{0}, 0, true
	}
	if def < 0 {
		def = out[0]
	}
	return out, def, false
}

// AudioEncoderElement resolves the element descriptor for an audio codec
func (t *Translator) AudioEncoderElement(c AudioCodec) (*config.ElementDescriptor, error) {
	d, _, err := t.store.Element(config.CategoryAudioEncoder, c.String())
	return d, err
}

// VideoEncoderElement resolves the element descriptor for a video codec
func (t *Translator) VideoEncoderElement(c VideoCodec) (*config.ElementDescriptor, error) {
	d, _, err := t.store.Element(config.CategoryVideoEncoder, c.String())
	return d, err
}

// ImageEncoderElement resolves the element descriptor for an image codec
func (t *Translator) ImageEncoderElement(c ImageCodec) (*config.ElementDescriptor, error) {
	d, _, err := t.store.Element(config.CategoryImageEncoder, c.String())
	return d, err
}

// MuxElement resolves the element descriptor for a container
func (t *Translator) MuxElement(c Container) (*config.ElementDescriptor, error) {
	d, _, err := t.store.Element(config.CategoryMux, c.String())
	return d, err
}
