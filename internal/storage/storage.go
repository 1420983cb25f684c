package storage

import "io"

// Store keeps one uploads directory and one artifacts directory per session.
// Uploads are the raw inputs (deck facts, recording, timing, script);
// artifacts are pipeline outputs (report.json, feedback.md, transcript.txt).
type Store interface {
	CreateSession(sessionID string) error
	RemoveSession(sessionID string) error
	SessionExists(sessionID string) bool

	SaveUpload(sessionID, filename string, r io.Reader) (string, error)
	UploadPath(sessionID, filename string) (string, error)
	FindUpload(sessionID string, candidates ...string) (string, bool)
	ReadUpload(sessionID, filename string) ([]byte, error)

	AppendAudioChunk(sessionID string, r io.Reader) error
	FinalizeAudio(sessionID string) (string, error)

	WriteArtifact(sessionID, filename string, data []byte) (string, error)
	ReadArtifact(sessionID, filename string) ([]byte, error)
}
