package bot

// User-visible reply texts. The orchestrator is the only component that
// speaks to the user; stores and the transcriber report errors upward
// instead of messaging anyone.
const (
	// MsgGreeting answers the start command.
	MsgGreeting = "Send me a voice message, and I'll transcribe it for you!"

	// MsgFallbackTranscript is stored and shown when no configured language
	// recognises the audio.
	MsgFallbackTranscript = "Sorry, I could not understand the audio."

	// MsgVoicePrompt answers free text when no edit is pending.
	MsgVoicePrompt = "Please send a voice message and I'll transcribe it for you."

	// MsgNotFound answers an edit request for an unknown transcription.
	MsgNotFound = "Transcription not found."

	// MsgInvalidAction answers a button press whose payload cannot be parsed.
	MsgInvalidAction = "Invalid button action. Please try again."

	// MsgProcessingFailed answers any internal failure; details stay in the
	// logs.
	MsgProcessingFailed = "Sorry, something went wrong while processing your message. Please try again."

	// MsgSearchUnavailable answers a search command when no archive is
	// configured.
	MsgSearchUnavailable = "Search is not available on this instance."

	// MsgSearchNoResults answers a search that matched nothing.
	MsgSearchNoResults = "No transcriptions matched your search."
)
