package capability

import "strings"

// AudioCodec is the abstract audio codec index
type AudioCodec int

const (
	AudioCodecAMR AudioCodec = iota
	AudioCodecMP3
	AudioCodecAAC
	AudioCodecVorbis
	AudioCodecPCM
	AudioCodecOpus
	audioCodecCount
)

var audioCodecNames = [...]string{"AMR", "MP3", "AAC", "Vorbis", "PCM", "Opus"}

// String returns the configuration key naming the codec
func (c AudioCodec) String() string {
	if c < 0 || c >= audioCodecCount {
		return "unknown"
	}
	return audioCodecNames[c]
}

// VideoCodec is the abstract video codec index
type VideoCodec int

const (
	VideoCodecH263 VideoCodec = iota
	VideoCodecH264
	VideoCodecH265
	VideoCodecMPEG4
	VideoCodecTheora
	VideoCodecVP8
	VideoCodecVP9
	videoCodecCount
)

var videoCodecNames = [...]string{"H263", "H264", "H265", "MPEG4", "Theora", "VP8", "VP9"}

func (c VideoCodec) String() string {
	if c < 0 || c >= videoCodecCount {
		return "unknown"
	}
	return videoCodecNames[c]
}

// ImageCodec is the abstract still image codec index
type ImageCodec int

const (
	ImageCodecJPEG ImageCodec = iota
	ImageCodecPNG
	imageCodecCount
)

var imageCodecNames = [...]string{"JPEG", "PNG"}

func (c ImageCodec) String() string {
	if c < 0 || c >= imageCodecCount {
		return "unknown"
	}
	return imageCodecNames[c]
}

// Container is the abstract file format index
type Container int

const (
	Container3GP Container = iota
	ContainerMP4
	ContainerMatroska
	ContainerOgg
	ContainerWebM
	ContainerWAV
	ContainerAMR
	containerCount
)

var containerNames = [...]string{"3GP", "MP4", "Matroska", "Ogg", "WebM", "WAV", "AMR"}

var containerExtensions = [...]string{".3gp", ".mp4", ".mkv", ".ogg", ".webm", ".wav", ".amr"}

func (c Container) String() string {
	if c < 0 || c >= containerCount {
		return "unknown"
	}
	return containerNames[c]
}

// Extension returns the conventional file extension for the container
func (c Container) Extension() string {
	if c < 0 || c >= containerCount {
		return ""
	}
	return containerExtensions[c]
}

// ParseAudioCodec resolves a codec name, case-insensitively
func ParseAudioCodec(name string) (AudioCodec, bool) {
	i := indexOf(audioCodecNames[:], name)
	return AudioCodec(i), i >= 0
}

// ParseVideoCodec resolves a codec name, case-insensitively
func ParseVideoCodec(name string) (VideoCodec, bool) {
	i := indexOf(videoCodecNames[:], name)
	return VideoCodec(i), i >= 0
}

// ParseImageCodec resolves a codec name, case-insensitively
func ParseImageCodec(name string) (ImageCodec, bool) {
	i := indexOf(imageCodecNames[:], name)
	return ImageCodec(i), i >= 0
}

// ParseContainer resolves a container name, case-insensitively
func ParseContainer(name string) (Container, bool) {
	i := indexOf(containerNames[:], name)
	return Container(i), i >= 0
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
