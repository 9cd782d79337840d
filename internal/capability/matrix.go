package capability

// Matrix says which codecs each container accepts. It is a value type and
// never changes once handed to a Translator.
type Matrix struct {
	audio [audioCodecCount][containerCount]bool
	video [videoCodecCount][containerCount]bool
}

// DefaultMatrix returns the stock codec/container table.
// Columns follow Container order: 3GP, MP4, Matroska, Ogg, WebM, WAV, AMR
func DefaultMatrix() Matrix {
	return Matrix{
		audio: [audioCodecCount][containerCount]bool{
			AudioCodecAMR:    {true, true, true, false, false, false, true},
			AudioCodecMP3:    {false, true, true, false, false, false, false},
			AudioCodecAAC:    {true, true, true, false, false, false, false},
			AudioCodecVorbis: {false, false, true, true, true, false, false},
			AudioCodecPCM:    {false, false, true, false, false, true, false},
			AudioCodecOpus:   {false, true, true, true, true, false, false},
		},
		video: [videoCodecCount][containerCount]bool{
			VideoCodecH263:   {true, true, true, false, false, false, false},
			VideoCodecH264:   {true, true, true, false, false, false, false},
			VideoCodecH265:   {false, true, true, false, false, false, false},
			VideoCodecMPEG4:  {true, true, true, false, false, false, false},
			VideoCodecTheora: {false, false, true, true, false, false, false},
			VideoCodecVP8:    {false, false, true, false, true, false, false},
			VideoCodecVP9:    {false, true, true, false, true, false, false},
		},
	}
}

// WithAudio returns a copy of m with one audio cell changed
func (m Matrix) WithAudio(codec AudioCodec, container Container, ok bool) Matrix {
	if codec >= 0 && codec < audioCodecCount && container >= 0 && container < containerCount {
		m.audio[codec][container] = ok
	}
	return m
}

// WithVideo returns a copy of m with one video cell changed
func (m Matrix) WithVideo(codec VideoCodec, container Container, ok bool) Matrix {
	if codec >= 0 && codec < videoCodecCount && container >= 0 && container < containerCount {
		m.video[codec][container] = ok
	}
	return m
}

// IsAudioCompatible reports whether codec may be muxed into container.
// Indices outside the table are never compatible.
func (m Matrix) IsAudioCompatible(codec AudioCodec, container Container) bool {
	if codec < 0 || codec >= audioCodecCount || container < 0 || container >= containerCount {
		return false
	}
	return m.audio[codec][container]
}

// IsVideoCompatible reports whether codec may be muxed into container.
// Indices outside the table are never compatible.
func (m Matrix) IsVideoCompatible(codec VideoCodec, container Container) bool {
	if codec < 0 || codec >= videoCodecCount || container < 0 || container >= containerCount {
		return false
	}
	return m.video[codec][container]
}

// IsAudioCompatible checks codec against the translator's matrix
func (t *Translator) IsAudioCompatible(codec AudioCodec, container Container) bool {
	return t.matrix.IsAudioCompatible(codec, container)
}

// IsVideoCompatible checks codec against the translator's matrix
func (t *Translator) IsVideoCompatible(codec VideoCodec, container Container) bool {
	return t.matrix.IsVideoCompatible(codec, container)
}

// Matrix returns a copy of the compatibility table in use
func (t *Translator) Matrix() Matrix {
	return t.matrix
}
