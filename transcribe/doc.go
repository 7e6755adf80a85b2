// Package transcribe implements the realtime transcription session client:
// one duplex streaming connection per conversation session that accepts
// PCM16 audio frames and emits incremental and final transcript events.
package transcribe
