package models

import "fmt"

type SaveState int

const (
	SaveIdle SaveState = iota
	SavePending
	SaveSaving
	SaveSaved
	SaveFailed
)

func (s SaveState) String() string {
	switch s {
	case SaveIdle:
		return "idle"
	case SavePending:
		return "pending"
	case SaveSaving:
		return "saving"
	case SaveSaved:
		return "saved"
	case SaveFailed:
		return "failed"
	}
	return "unknown"
}

func (s SaveState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SaveState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = SaveIdle
	case "pending":
		*s = SavePending
	case "saving":
		*s = SaveSaving
	case "saved":
		*s = SaveSaved
	case "failed":
		*s = SaveFailed
	default:
		return fmt.Errorf("unknown save state %q", text)
	}
	return nil
}

// SessionDocument is the session's view of the file being edited. CurrentPath
// is the only indirection other collaborators read before acting on the file.
type SessionDocument struct {
	SourcePath  string
	CurrentPath string
	Dirty       bool
	SaveState   SaveState
}

func NewSessionDocument(path string) *SessionDocument {
	return &SessionDocument{
		SourcePath:  path,
		CurrentPath: path,
		SaveState:   SaveIdle,
	}
}

// Advance moves CurrentPath from `from` to `to`. It refuses when CurrentPath
// is no longer `from`, which means another operation already replaced the file
// the caller worked on.
func (d *SessionDocument) Advance(from, to string) bool {
	if d.CurrentPath != from || to == "" {
		return false
	}
	d.CurrentPath = to
	return true
}

type ContentState int

const (
	ContentEmpty ContentState = iota
	ContentExtracting
	ContentExtracted
	ContentEditing
	ContentCommitting
)

func (s ContentState) String() string {
	switch s {
	case ContentEmpty:
		return "empty"
	case ContentExtracting:
		return "extracting"
	case ContentExtracted:
		return "extracted"
	case ContentEditing:
		return "editing"
	case ContentCommitting:
		return "committing"
	}
	return "unknown"
}

func (s ContentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ContentState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "empty":
		*s = ContentEmpty
	case "extracting":
		*s = ContentExtracting
	case "extracted":
		*s = ContentExtracted
	case "editing":
		*s = ContentEditing
	case "committing":
		*s = ContentCommitting
	default:
		return fmt.Errorf("unknown content state %q", text)
	}
	return nil
}

// ContentBuffer holds extracted text and, while editing, the user's draft.
// A commit of EditedText is valid only while ExtractedAtPath still equals the
// document's CurrentPath.
type ContentBuffer struct {
	ExtractedText   string  `json:"extracted_text"`
	EditedText      *string `json:"edited_text,omitempty"`
	ExtractedAtPath string  `json:"extracted_at_path"`
}

func (b ContentBuffer) IsStale(currentPath string) bool {
	return b.ExtractedAtPath != currentPath
}
