package speech

// Default voice for Azure TTS.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoice = "en-US-AvaNeural"

// Audio format requested from Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Playback parameters matching the default format. Every synthesizer
// returns WAV audio in this shape.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Capture parameters expected by the assessment services.
const (
	CaptureSampleRate = 16000
	CaptureChannels   = 1
)
