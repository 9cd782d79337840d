package config

import "strings"

// Configuration categories
const (
	CategoryGeneral       = "General"
	CategoryVideoInput    = "VideoInput"
	CategoryAudioInput    = "AudioInput"
	CategoryVideoOutput   = "VideoOutput"
	CategoryVideoEncoder  = "VideoEncoder"
	CategoryAudioEncoder  = "AudioEncoder"
	CategoryImageEncoder  = "ImageEncoder"
	CategoryMux           = "Mux"
	CategoryCapture       = "Capture"
	CategoryRecord        = "Record"
	CategoryCameraControl = "CameraControl"
	CategoryCapability    = "Capability"
)

// SchemaEntry is one compiled-in key with its kind and default text
type SchemaEntry struct {
	Category string
	Key      string
	Kind     Kind
	Default  string
}

// Schema lists every key the engine knows about. The default text of every
// entry must parse as its kind.
var Schema = []SchemaEntry{
	{CategoryGeneral, "StateChangeTimeout", KindInt, "5000"},
	{CategoryGeneral, "DisabledAttributes", KindStringArray, ""},
	{CategoryGeneral, "ModelName", KindString, "camcorder"},
	{CategoryGeneral, "BusPollInterval", KindInt, "100"},

	{CategoryVideoInput, "VideoSource", KindElement, "v4l2src | device=/dev/video0 | do-timestamp=1"},
	{CategoryVideoInput, "VideoFilter", KindElement, "capsfilter"},
	{CategoryVideoInput, "PreviewQueue", KindElement, "queue | max-size-buffers=2"},
	{CategoryVideoInput, "BridgeQueue", KindElement, "queue | max-size-buffers=4"},
	{CategoryVideoInput, "PreviewResolution", KindIntPairArray, "1920x1080, 1280x720, 640x480, 320x240 || 640x480"},
	{CategoryVideoInput, "FPS", KindIntArray, "15, 24, 30 || 30"},
	{CategoryVideoInput, "PixelFormat", KindIntArray, "0, 1, 2, 3 || 0"},
	{CategoryVideoInput, "Rotation", KindIntArray, "0, 90, 180, 270 || 0"},

	{CategoryAudioInput, "AudioSource", KindElement, "autoaudiosrc"},
	{CategoryAudioInput, "AudioFilter", KindElement, "capsfilter"},
	{CategoryAudioInput, "AudioVolume", KindElement, "volume"},
	{CategoryAudioInput, "AudioQueue", KindElement, "queue | max-size-buffers=8"},
	{CategoryAudioInput, "SampleRate", KindIntArray, "8000, 16000, 22050, 44100, 48000 || 44100"},
	{CategoryAudioInput, "Channels", KindIntRange, "1,2,2"},
	{CategoryAudioInput, "AudioFormat", KindIntArray, "0, 1 || 0"},

	{CategoryVideoOutput, "DisplaySink", KindElement, "autovideosink | sync=0"},
	{CategoryVideoOutput, "FormatBridge", KindElement, "videoconvert"},
	{CategoryVideoOutput, "UseFormatBridge", KindInt, "1"},
	{CategoryVideoOutput, "HandleProperty", KindString, "window-handle"},
	{CategoryVideoOutput, "GeometryMethods", KindIntArray, "0, 1, 2, 3 || 1"},
	{CategoryVideoOutput, "VisibleProperty", KindString, ""},
	{CategoryVideoOutput, "GeometryProperty", KindString, ""},
	{CategoryVideoOutput, "RotationProperty", KindString, ""},

	{CategoryVideoEncoder, "H263", KindElement, "avenc_h263"},
	{CategoryVideoEncoder, "H264", KindElement, "x264enc | tune=4 | speed-preset=1"},
	{CategoryVideoEncoder, "H265", KindElement, "x265enc | tune=4 | speed-preset=1"},
	{CategoryVideoEncoder, "MPEG4", KindElement, "avenc_mpeg4"},
	{CategoryVideoEncoder, "Theora", KindElement, "theoraenc"},
	{CategoryVideoEncoder, "VP8", KindElement, "vp8enc | deadline=1"},
	{CategoryVideoEncoder, "VP9", KindElement, "vp9enc | deadline=1"},
	{CategoryVideoEncoder, "Converter", KindElement, "videoconvert"},
	{CategoryVideoEncoder, "Bitrate", KindIntRange, "64,40000,3000"},
	{CategoryVideoEncoder, "BitrateProperty", KindString, "bitrate"},

	{CategoryAudioEncoder, "AMR", KindElement, "amrnbenc"},
	{CategoryAudioEncoder, "MP3", KindElement, "lamemp3enc"},
	{CategoryAudioEncoder, "AAC", KindElement, "avenc_aac"},
	{CategoryAudioEncoder, "Vorbis", KindElement, "vorbisenc"},
	{CategoryAudioEncoder, "PCM", KindElement, "audioconvert"},
	{CategoryAudioEncoder, "Opus", KindElement, "opusenc"},
	{CategoryAudioEncoder, "Converter", KindElement, "audioconvert"},
	{CategoryAudioEncoder, "Bitrate", KindIntRange, "8000,320000,128000"},
	{CategoryAudioEncoder, "BitrateProperty", KindString, "bitrate"},

	{CategoryImageEncoder, "JPEG", KindElement, "jpegenc"},
	{CategoryImageEncoder, "PNG", KindElement, "pngenc"},
	{CategoryImageEncoder, "Quality", KindIntRange, "1,100,95"},
	{CategoryImageEncoder, "QualityProperty", KindString, "quality"},

	{CategoryMux, "3GP", KindElement, "3gppmux"},
	{CategoryMux, "MP4", KindElement, "mp4mux"},
	{CategoryMux, "Matroska", KindElement, "matroskamux"},
	{CategoryMux, "Ogg", KindElement, "oggmux"},
	{CategoryMux, "WebM", KindElement, "webmmux"},
	{CategoryMux, "WAV", KindElement, "wavenc"},
	{CategoryMux, "AMR", KindElement, "identity"},
	{CategoryMux, "FileSink", KindElement, "filesink | async=0"},

	{CategoryCapture, "CaptureResolution", KindIntPairArray, "3264x2448, 1920x1080, 1280x720, 640x480 || 1920x1080"},
	{CategoryCapture, "Count", KindIntRange, "1,20,1"},
	{CategoryCapture, "Interval", KindIntRange, "0,10000,0"},
	{CategoryCapture, "Scaler", KindElement, "videoscale"},
	{CategoryCapture, "Converter", KindElement, "videoconvert"},
	{CategoryCapture, "Source", KindElement, "appsrc | format=3 | is-live=1"},
	{CategoryCapture, "DataSink", KindElement, "appsink | sync=0"},

	{CategoryRecord, "VideoResolution", KindIntPairArray, "1920x1080, 1280x720, 640x480 || 1280x720"},
	{CategoryRecord, "Source", KindElement, "appsrc | format=3 | is-live=1"},
	{CategoryRecord, "Queue", KindElement, "queue"},
	{CategoryRecord, "StatusInterval", KindInt, "1000"},
	{CategoryRecord, "MinFreeSpace", KindInt, "1048576"},

	{CategoryCameraControl, "WhiteBalance", KindIntArray, "1, 6, 8, 3, 2, 9, 5, 7, -255 || 0"},
	{CategoryCameraControl, "ColorTone", KindIntArray, "0, 1, 2, 3, 4, 5, 6, -255, 9 || 0"},
	{CategoryCameraControl, "ISO", KindIntArray, "0, 1, 2, 3, 4, 5, 6, -255 || 0"},
	{CategoryCameraControl, "SceneMode", KindIntArray, "0, 10, 7, 11, 9, 2, 12, 8, 6, 13, 1, 3 || 0"},
	{CategoryCameraControl, "FocusMode", KindIntArray, "0, -255, 1, 2, -255, 3 || 2"},
	{CategoryCameraControl, "AFScanRange", KindIntArray, "0, 1, 2 || 0"},
	{CategoryCameraControl, "ExposureMode", KindIntArray, "0, 1, 2, 3 || 0"},
	{CategoryCameraControl, "StrobeMode", KindIntArray, "0, 1, 2, -255, -255, -255, -255, 3 || 0"},
	{CategoryCameraControl, "WDR", KindIntArray, "0, 1, -255 || 0"},
	{CategoryCameraControl, "AntiHandshake", KindIntArray, "0, 1, -255, -255 || 0"},
	{CategoryCameraControl, "FaceDetect", KindIntArray, "0, 1 || 0"},
	{CategoryCameraControl, "Flip", KindIntArray, "0, 1, 2, 3 || 0"},
	{CategoryCameraControl, "DigitalZoom", KindIntRange, "10,40,10"},
	{CategoryCameraControl, "OpticalZoom", KindIntRange, "0,0,0"},
	{CategoryCameraControl, "FocusLevel", KindIntRange, "0,255,0"},
	{CategoryCameraControl, "ExposureValue", KindIntRange, "0,8,4"},
	{CategoryCameraControl, "Brightness", KindIntRange, "0,8,4"},
	{CategoryCameraControl, "Contrast", KindIntRange, "0,8,4"},
	{CategoryCameraControl, "Saturation", KindIntRange, "0,8,4"},
	{CategoryCameraControl, "Sharpness", KindIntRange, "0,8,4"},
	{CategoryCameraControl, "Hue", KindIntRange, "0,8,4"},

	{CategoryCapability, "AudioCodecs", KindIntArray, "2 || 2"},
	{CategoryCapability, "VideoCodecs", KindIntArray, "1 || 1"},
	{CategoryCapability, "ImageCodecs", KindIntArray, "0 || 0"},
	{CategoryCapability, "Containers", KindIntArray, "1 || 1"},
}

// schemaKey is the case-insensitive lookup key used for both viper and the schema
func schemaKey(category, key string) string {
	return strings.ToLower(category) + "." + strings.ToLower(key)
}
