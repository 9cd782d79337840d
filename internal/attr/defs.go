package attr

import (
	"math"
	"slices"

	"github.com/bryanchriswhite/camcorder/internal/capability"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/state"
)

// ID identifies an attribute
type ID uint16

const (
	Mode ID = iota
	CameraWidth
	CameraHeight
	CameraFPS
	CameraFormat
	CameraDigitalZoom
	CameraOpticalZoom
	CameraFocusMode
	CameraAFScanRange
	CameraFocusLevel
	CameraExposureMode
	CameraExposureValue
	CameraISO
	CameraWDR
	CameraAntiHandshake
	FilterBrightness
	FilterContrast
	FilterSaturation
	FilterSharpness
	FilterHue
	FilterWB
	FilterColorTone
	FilterSceneMode
	FilterFlip
	StrobeMode
	DetectMode
	DetectNumber
	CaptureWidth
	CaptureHeight
	CaptureCount
	CaptureInterval
	CaptureBreakContShot
	ImageEncoder
	ImageEncoderQuality
	AudioEncoder
	AudioEncoderBitrate
	AudioSampleRate
	AudioChannel
	AudioFormat
	AudioVolume
	AudioDisable
	VideoEncoder
	VideoEncoderBitrate
	VideoWidth
	VideoHeight
	FileFormat
	DisplayHandle
	DisplayVisible
	DisplayGeometryMethod
	DisplayRotation
	TargetFilename
	TargetMaxSize
	TargetTimeLimit
	TagEnable
	TagLatitude
	TagLongitude
	TagAltitude
	TagImageDescription
	ModelName
	idCount
)

// Group selects the commit handler an attribute is dispatched to
type Group uint8

const (
	GroupNone Group = iota
	GroupCamera
	GroupResolution
	GroupDisplay
	GroupAudio
	GroupEncoder
	GroupCapture
	GroupStrobe
	GroupDetect
)

func (g Group) String() string {
	switch g {
	case GroupCamera:
		return "camera"
	case GroupResolution:
		return "resolution"
	case GroupDisplay:
		return "display"
	case GroupAudio:
		return "audio"
	case GroupEncoder:
		return "encoder"
	case GroupCapture:
		return "capture"
	case GroupStrobe:
		return "strobe"
	case GroupDetect:
		return "detect"
	default:
		return "none"
	}
}

// noFeature marks attributes without an enum conversion table
const noFeature capability.Feature = -1

// validityFunc resolves an attribute's constraint and default from the device
type validityFunc func(b *builder) (Validity, any)

type def struct {
	id       ID
	name     string
	kind     Kind
	flags    Flags
	writable state.StateMask
	group    Group
	feature  capability.Feature
	validity validityFunc
}

// pairDef ties a width/height couple to a resolution table
type pairDef struct {
	a, b     ID
	category string
	key      string
}

var pairs = []pairDef{
	{CameraWidth, CameraHeight, config.CategoryVideoInput, "PreviewResolution"},
	{CaptureWidth, CaptureHeight, config.CategoryCapture, "CaptureResolution"},
	{VideoWidth, VideoHeight, config.CategoryRecord, "VideoResolution"},
}

// readOnly lists attributes whose values are hardware facts owned by the engine
var readOnly = []ID{DetectNumber, ModelName}

const rw = FlagsReadWrite

var defs = []def{
	{Mode, "mode", KindInt, rw, state.MaskNull, GroupNone, noFeature, intArray([]int{int(state.ModeImage), int(state.ModeVideo), int(state.ModeAudio)}, int(state.ModeImage))},

	{CameraWidth, "camera-width", KindInt, rw, state.MaskUpToPrepare, GroupResolution, noFeature, pairMember(0, 0)},
	{CameraHeight, "camera-height", KindInt, rw, state.MaskUpToPrepare, GroupResolution, noFeature, pairMember(0, 1)},
	{CameraFPS, "camera-fps", KindInt, rw, state.MaskUpToPrepare, GroupResolution, noFeature, configArray(config.CategoryVideoInput, "FPS")},
	{CameraFormat, "camera-format", KindInt, rw, state.MaskNull, GroupNone, noFeature, configArray(config.CategoryVideoInput, "PixelFormat")},
	{CameraDigitalZoom, "camera-digital-zoom", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "DigitalZoom")},
	{CameraOpticalZoom, "camera-optical-zoom", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "OpticalZoom")},
	{CameraFocusMode, "camera-focus-mode", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureFocusMode, featureArray},
	{CameraAFScanRange, "camera-af-scan-range", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureAFScanRange, featureArray},
	{CameraFocusLevel, "camera-focus-level", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "FocusLevel")},
	{CameraExposureMode, "camera-exposure-mode", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureExposureMode, featureArray},
	{CameraExposureValue, "camera-exposure-value", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "ExposureValue")},
	{CameraISO, "camera-iso", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureISO, featureArray},
	{CameraWDR, "camera-wdr", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureWDR, featureArray},
	{CameraAntiHandshake, "camera-anti-handshake", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureAntiHandshake, featureArray},

	{FilterBrightness, "filter-brightness", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "Brightness")},
	{FilterContrast, "filter-contrast", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "Contrast")},
	{FilterSaturation, "filter-saturation", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "Saturation")},
	{FilterSharpness, "filter-sharpness", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "Sharpness")},
	{FilterHue, "filter-hue", KindInt, rw, state.MaskAll, GroupCamera, noFeature, configRange(config.CategoryCameraControl, "Hue")},
	{FilterWB, "filter-wb", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureWhiteBalance, featureArray},
	{FilterColorTone, "filter-color-tone", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureColorTone, featureArray},
	{FilterSceneMode, "filter-scene-mode", KindInt, rw, state.MaskAll, GroupCamera, capability.FeatureSceneMode, featureArray},
	{FilterFlip, "filter-flip", KindInt, rw, state.MaskUpToPrepare, GroupCamera, capability.FeatureFlip, featureArray},

	{StrobeMode, "strobe-mode", KindInt, rw, state.MaskAll, GroupStrobe, capability.FeatureStrobeMode, featureArray},
	{DetectMode, "detect-mode", KindInt, rw, state.MaskAll, GroupDetect, capability.FeatureFaceDetect, featureArray},
	{DetectNumber, "detect-number", KindInt, rw, state.MaskNone, GroupNone, noFeature, intRange(0, 32, 0)},

	{CaptureWidth, "capture-width", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, pairMember(1, 0)},
	{CaptureHeight, "capture-height", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, pairMember(1, 1)},
	{CaptureCount, "capture-count", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, configRange(config.CategoryCapture, "Count")},
	{CaptureInterval, "capture-interval", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, configRange(config.CategoryCapture, "Interval")},
	{CaptureBreakContShot, "capture-break-cont-shot", KindInt, rw, state.MaskCapturing | state.MaskPrepare, GroupCapture, noFeature, intRange(0, 1, 0)},

	{ImageEncoder, "image-encoder", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, imageCodecs},
	{ImageEncoderQuality, "image-encoder-quality", KindInt, rw, state.MaskAll, GroupEncoder, noFeature, configRange(config.CategoryImageEncoder, "Quality")},
	{AudioEncoder, "audio-encoder", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, audioCodecs},
	{AudioEncoderBitrate, "audio-encoder-bitrate", KindInt, rw, state.MaskAll, GroupEncoder, noFeature, configRange(config.CategoryAudioEncoder, "Bitrate")},
	{AudioSampleRate, "audio-samplerate", KindInt, rw, state.MaskUpToReady, GroupNone, noFeature, configArray(config.CategoryAudioInput, "SampleRate")},
	{AudioChannel, "audio-channel", KindInt, rw, state.MaskUpToReady, GroupNone, noFeature, configRange(config.CategoryAudioInput, "Channels")},
	{AudioFormat, "audio-format", KindInt, rw, state.MaskUpToReady, GroupNone, noFeature, configArray(config.CategoryAudioInput, "AudioFormat")},
	{AudioVolume, "audio-volume", KindDouble, rw, state.MaskAll, GroupAudio, noFeature, doubleRange(0, 10, 1)},
	{AudioDisable, "audio-disable", KindInt, rw, state.MaskAll, GroupAudio, noFeature, intRange(0, 1, 0)},
	{VideoEncoder, "video-encoder", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, videoCodecs},
	{VideoEncoderBitrate, "video-encoder-bitrate", KindInt, rw, state.MaskAll, GroupEncoder, noFeature, configRange(config.CategoryVideoEncoder, "Bitrate")},
	{VideoWidth, "video-width", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, pairMember(2, 0)},
	{VideoHeight, "video-height", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, pairMember(2, 1)},
	{FileFormat, "file-format", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, containers},

	{DisplayHandle, "display-handle", KindData, rw, state.MaskUpToPrepare, GroupDisplay, noFeature, none(nil)},
	{DisplayVisible, "display-visible", KindInt, rw, state.MaskAll, GroupDisplay, noFeature, intRange(0, 1, 1)},
	{DisplayGeometryMethod, "display-geometry-method", KindInt, rw, state.MaskAll, GroupDisplay, noFeature, configArray(config.CategoryVideoOutput, "GeometryMethods")},
	{DisplayRotation, "display-rotation", KindInt, rw, state.MaskUpToPrepare, GroupDisplay, noFeature, intArray([]int{0, 1, 2, 3}, 0)},

	{TargetFilename, "target-filename", KindString, rw, state.MaskUpToPrepare, GroupNone, noFeature, none("")},
	{TargetMaxSize, "target-max-size", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, intRange(0, math.MaxInt32, 0)},
	{TargetTimeLimit, "target-time-limit", KindInt, rw, state.MaskUpToPrepare, GroupNone, noFeature, intRange(0, math.MaxInt32, 0)},

	{TagEnable, "tag-enable", KindInt, rw, state.MaskAll, GroupNone, noFeature, intRange(0, 1, 0)},
	{TagLatitude, "tag-latitude", KindDouble, rw, state.MaskAll, GroupNone, noFeature, doubleRange(-90, 90, 0)},
	{TagLongitude, "tag-longitude", KindDouble, rw, state.MaskAll, GroupNone, noFeature, doubleRange(-180, 180, 0)},
	{TagAltitude, "tag-altitude", KindDouble, rw, state.MaskAll, GroupNone, noFeature, doubleRange(-1000, 10000, 0)},
	{TagImageDescription, "tag-image-description", KindString, rw, state.MaskAll, GroupNone, noFeature, none("")},

	{ModelName, "model-name", KindString, rw, state.MaskNone, GroupNone, noFeature, modelName},
}

// builder resolves device-dependent validity while a Store is constructed
type builder struct {
	tr    *capability.Translator
	store *config.Store
	pairs []config.IntPairArray
	warn  func(name string, err error)
	cur   *def
}

func none(defaultValue any) validityFunc {
	return func(*builder) (Validity, any) {
		return Validity{Kind: ValidityNone}, defaultValue
	}
}

func intRange(minV, maxV, defaultValue int) validityFunc {
	return func(*builder) (Validity, any) {
		return Validity{Kind: ValidityIntRange, IntMin: minV, IntMax: maxV}, defaultValue
	}
}

func intArray(values []int, defaultValue int) validityFunc {
	return func(*builder) (Validity, any) {
		return Validity{Kind: ValidityIntArray, Ints: append([]int(nil), values...)}, defaultValue
	}
}

func doubleRange(minV, maxV, defaultValue float64) validityFunc {
	return func(*builder) (Validity, any) {
		return Validity{Kind: ValidityDoubleRange, DoubleMin: minV, DoubleMax: maxV}, defaultValue
	}
}

func configRange(category, key string) validityFunc {
	return func(b *builder) (Validity, any) {
		r, _, err := b.store.IntRange(category, key)
		if err != nil {
			b.warn(b.cur.name, err)
			return Validity{Kind: ValidityIntRange}, 0
		}
		return Validity{Kind: ValidityIntRange, IntMin: r.Min, IntMax: r.Max}, r.Default
	}
}

func configArray(category, key string) validityFunc {
	return func(b *builder) (Validity, any) {
		a, _, err := b.store.IntArray(category, key)
		if err != nil || len(a.Values) == 0 {
			b.warn(b.cur.name, err)
			return Validity{Kind: ValidityIntArray, Ints: []int{0}}, 0
		}
		dflt := a.Default
		if !slices.Contains(a.Values, dflt) {
			dflt = a.Values[0]
		}
		return Validity{Kind: ValidityIntArray, Ints: append([]int(nil), a.Values...)}, dflt
	}
}

// featureArray exposes only the abstract indices the device supports
func featureArray(b *builder) (Validity, any) {
	indices, dflt, ok := b.tr.Available(b.cur.feature)
	if !ok || len(indices) == 0 {
		return Validity{Kind: ValidityIntArray, Ints: []int{0}}, 0
	}
	return Validity{Kind: ValidityIntArray, Ints: indices}, dflt
}

// pairMember builds the validity of one member of a resolution pair: the
// distinct values of that member, in table order
func pairMember(pair, member int) validityFunc {
	return func(b *builder) (Validity, any) {
		table := b.pairs[pair]
		var vals []int
		for _, p := range table.Pairs {
			if !slices.Contains(vals, p[member]) {
				vals = append(vals, p[member])
			}
		}
		return Validity{Kind: ValidityIntArray, Ints: vals}, table.Default[member]
	}
}

func audioCodecs(b *builder) (Validity, any) {
	codecs, dflt, _ := b.tr.SupportedAudioCodecs()
	ints := make([]int, len(codecs))
	for i, c := range codecs {
		ints[i] = int(c)
	}
	return Validity{Kind: ValidityIntArray, Ints: ints}, int(dflt)
}

func videoCodecs(b *builder) (Validity, any) {
	codecs, dflt, _ := b.tr.SupportedVideoCodecs()
	ints := make([]int, len(codecs))
	for i, c := range codecs {
		ints[i] = int(c)
	}
	return Validity{Kind: ValidityIntArray, Ints: ints}, int(dflt)
}

func imageCodecs(b *builder) (Validity, any) {
	codecs, dflt, _ := b.tr.SupportedImageCodecs()
	ints := make([]int, len(codecs))
	for i, c := range codecs {
		ints[i] = int(c)
	}
	return Validity{Kind: ValidityIntArray, Ints: ints}, int(dflt)
}

func containers(b *builder) (Validity, any) {
	list, dflt, _ := b.tr.SupportedContainers()
	ints := make([]int, len(list))
	for i, c := range list {
		ints[i] = int(c)
	}
	return Validity{Kind: ValidityIntArray, Ints: ints}, int(dflt)
}

func modelName(b *builder) (Validity, any) {
	return Validity{Kind: ValidityNone}, b.store.StringOr(config.CategoryGeneral, "ModelName", "camcorder")
}
