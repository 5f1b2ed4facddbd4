//go:build !darwin

package speech

// unsupported is the provider on platforms without a native backend.
type unsupported struct{}

// NewNative returns a provider that is never granted and never starts.
func NewNative() Provider {
	return unsupported{}
}

func (unsupported) HasPermission() bool { return false }
func (unsupported) RequestPermission()  {}

func (unsupported) StartListening(string) bool    { return false }
func (unsupported) StopListening()                {}
func (unsupported) IsListening() bool             { return false }
func (unsupported) Transcription() (string, bool) { return "", false }

func (unsupported) Speak(string, string) bool { return false }
func (unsupported) StopSpeaking()             {}
func (unsupported) IsSpeaking() bool          { return false }
