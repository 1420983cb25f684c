package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	audioPartName  = "audio.webm.part"
	audioFinalName = "audio.webm"
)

// LocalStore lays sessions out on the local filesystem:
// <uploads>/<session-id>/* for inputs, <artifacts>/<session-id>/* for outputs.
type LocalStore struct {
	uploadsDir   string
	artifactsDir string
}

func NewLocalStore(uploadsDir, artifactsDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	return &LocalStore{uploadsDir: uploadsDir, artifactsDir: artifactsDir}, nil
}

func cleanName(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || cleaned == "." {
		return "", fmt.Errorf("invalid name %q", name)
	}
	return cleaned, nil
}

func (ls *LocalStore) sessionDir(base, sessionID string) (string, error) {
	id, err := cleanName(sessionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, id), nil
}

func (ls *LocalStore) CreateSession(sessionID string) error {
	dir, err := ls.sessionDir(ls.uploadsDir, sessionID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	return nil
}

func (ls *LocalStore) RemoveSession(sessionID string) error {
	up, err := ls.sessionDir(ls.uploadsDir, sessionID)
	if err != nil {
		return err
	}
	art, err := ls.sessionDir(ls.artifactsDir, sessionID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(up); err != nil {
		return fmt.Errorf("failed to remove uploads: %w", err)
	}
	if err := os.RemoveAll(art); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}
	return nil
}

func (ls *LocalStore) SessionExists(sessionID string) bool {
	dir, err := ls.sessionDir(ls.uploadsDir, sessionID)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func (ls *LocalStore) SaveUpload(sessionID, filename string, r io.Reader) (string, error) {
	dir, err := ls.sessionDir(ls.uploadsDir, sessionID)
	if err != nil {
		return "", err
	}
	name, err := cleanName(filename)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(dir, name)
	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return fullPath, nil
}

func (ls *LocalStore) UploadPath(sessionID, filename string) (string, error) {
	dir, err := ls.sessionDir(ls.uploadsDir, sessionID)
	if err != nil {
		return "", err
	}
	name, err := cleanName(filename)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// FindUpload returns the first candidate filename that exists for the
// session. Recordings may arrive under several names (audio.webm from the
// in-browser recorder, audio.wav/mp3/m4a or video.mp4 from a file upload).
func (ls *LocalStore) FindUpload(sessionID string, candidates ...string) (string, bool) {
	for _, name := range candidates {
		path, err := ls.UploadPath(sessionID, name)
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return name, true
		}
	}
	return "", false
}

func (ls *LocalStore) ReadUpload(sessionID, filename string) ([]byte, error) {
	path, err := ls.UploadPath(sessionID, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

// AppendAudioChunk appends recorder bytes to the session's partial audio
// file. Chunks are ordered by arrival; the recorder sends them serially.
func (ls *LocalStore) AppendAudioChunk(sessionID string, r io.Reader) error {
	path, err := ls.UploadPath(sessionID, audioPartName)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audio part: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to append chunk: %w", err)
	}
	return nil
}

// FinalizeAudio promotes the partial audio file to its final name.
func (ls *LocalStore) FinalizeAudio(sessionID string) (string, error) {
	part, err := ls.UploadPath(sessionID, audioPartName)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(part); err != nil {
		return "", fmt.Errorf("no audio chunks uploaded: %w", err)
	}
	final, err := ls.UploadPath(sessionID, audioFinalName)
	if err != nil {
		return "", err
	}
	if err := os.Rename(part, final); err != nil {
		return "", fmt.Errorf("failed to finalize audio: %w", err)
	}
	return final, nil
}

func (ls *LocalStore) WriteArtifact(sessionID, filename string, data []byte) (string, error) {
	dir, err := ls.sessionDir(ls.artifactsDir, sessionID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	name, err := cleanName(filename)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(dir, name)
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return fullPath, nil
}

func (ls *LocalStore) ReadArtifact(sessionID, filename string) ([]byte, error) {
	dir, err := ls.sessionDir(ls.artifactsDir, sessionID)
	if err != nil {
		return nil, err
	}
	name, err := cleanName(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}
