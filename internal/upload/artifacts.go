// Package upload provides the immutable upload batch state shared by the wizard
// steps that collect resume files and their extraction results.
package upload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NoSelection is the Selected value when no file is selected.
const NoSelection = -1

// ErrIndexOutOfRange is returned when a file index does not exist in the batch.
var ErrIndexOutOfRange = errors.New("file index out of range")

// FileMeta describes one uploaded file.
type FileMeta struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type"`
}

// Extraction holds the extraction outcome for one file.
type Extraction struct {
	ExtractedText *string        `json:"extracted_text"`
	IsProcessing  bool           `json:"is_processing"`
	RawResponse   map[string]any `json:"raw_response"`
	Error         string         `json:"error,omitempty"`
}

// Ready reports whether the extraction produced usable text.
func (e Extraction) Ready() bool {
	return !e.IsProcessing && e.ExtractedText != nil && strings.TrimSpace(*e.ExtractedText) != ""
}

// Pending returns the placeholder result for a file that has not been processed yet.
func Pending() Extraction {
	return Extraction{IsProcessing: true}
}

// InterruptedMessage is recorded for files whose extraction never finished.
const InterruptedMessage = "processing interrupted"

// Interrupted returns the result for a file whose extraction was cut short.
func Interrupted() Extraction {
	return Extraction{Error: InterruptedMessage}
}

// Artifacts is the upload state: file metadata and extraction results kept
// index-for-index, plus the selected file pointer.
//
// Artifacts is a value type. Every mutating method returns a new value and
// leaves the receiver untouched, so a snapshot handed to an observer never
// changes underneath it.
type Artifacts struct {
	Files    []FileMeta   `json:"files"`
	Results  []Extraction `json:"results"`
	Selected int          `json:"selected"`
}

// Empty returns an Artifacts value with no files and no selection.
func Empty() Artifacts {
	return Artifacts{Selected: NoSelection}
}

// Len returns the number of files.
func (a Artifacts) Len() int {
	return len(a.Files)
}

// Append adds a batch of files, each with a pending extraction placeholder.
func (a Artifacts) Append(files ...FileMeta) Artifacts {
	out := a.clone(len(files))
	for _, f := range files {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		out.Files = append(out.Files, f)
		out.Results = append(out.Results, Pending())
	}
	return out
}

// IndexOf returns the index of the file with the given ID, or -1.
func (a Artifacts) IndexOf(id uuid.UUID) int {
	for i, f := range a.Files {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Resolve stores the extraction result for the file with the given ID.
// It returns false, and the unchanged receiver, when the file is no longer
// part of the batch (the result is stale).
func (a Artifacts) Resolve(id uuid.UUID, result Extraction) (Artifacts, bool) {
	idx := a.IndexOf(id)
	if idx < 0 {
		return a, false
	}
	out := a.clone(0)
	out.Results[idx] = result
	return out, true
}

// Remove drops the file at index together with its extraction result and
// adjusts the selection pointer.
func (a Artifacts) Remove(index int) (Artifacts, FileMeta, error) {
	if index < 0 || index >= len(a.Files) {
		return a, FileMeta{}, fmt.Errorf("remove %d of %d: %w", index, len(a.Files), ErrIndexOutOfRange)
	}
	removed := a.Files[index]

	out := Artifacts{
		Files:    make([]FileMeta, 0, len(a.Files)-1),
		Results:  make([]Extraction, 0, len(a.Results)-1),
		Selected: a.Selected,
	}
	out.Files = append(out.Files, a.Files[:index]...)
	out.Files = append(out.Files, a.Files[index+1:]...)
	out.Results = append(out.Results, a.Results[:index]...)
	out.Results = append(out.Results, a.Results[index+1:]...)

	switch {
	case a.Selected == index:
		out.Selected = NoSelection
	case a.Selected > index:
		out.Selected = a.Selected - 1
	}
	return out, removed, nil
}

// Select points the selection at index. NoSelection clears it.
func (a Artifacts) Select(index int) (Artifacts, error) {
	if index != NoSelection && (index < 0 || index >= len(a.Files)) {
		return a, fmt.Errorf("select %d of %d: %w", index, len(a.Files), ErrIndexOutOfRange)
	}
	out := a.clone(0)
	out.Selected = index
	return out, nil
}

// ReadyCount is the number of files whose extraction produced text.
// It gates the continue action on the upload screen.
func (a Artifacts) ReadyCount() int {
	n := 0
	for _, r := range a.Results {
		if r.Ready() {
			n++
		}
	}
	return n
}

// ProcessedCount is the number of files that are no longer processing.
func (a Artifacts) ProcessedCount() int {
	n := 0
	for _, r := range a.Results {
		if !r.IsProcessing {
			n++
		}
	}
	return n
}

// Processing reports whether any file is still being extracted.
func (a Artifacts) Processing() bool {
	return a.ProcessedCount() < len(a.Results)
}

// CombinedText joins the extracted text of all ready files, headed by file name.
func (a Artifacts) CombinedText() string {
	var sb strings.Builder
	for i, r := range a.Results {
		if !r.Ready() {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("=== ")
		sb.WriteString(a.Files[i].Name)
		sb.WriteString(" ===\n")
		sb.WriteString(strings.TrimSpace(*r.ExtractedText))
	}
	return sb.String()
}

// Consistent reports whether the files and results sequences line up.
func (a Artifacts) Consistent() bool {
	if len(a.Files) != len(a.Results) {
		return false
	}
	return a.Selected == NoSelection || (a.Selected >= 0 && a.Selected < len(a.Files))
}

func (a Artifacts) clone(extra int) Artifacts {
	out := Artifacts{
		Files:    make([]FileMeta, len(a.Files), len(a.Files)+extra),
		Results:  make([]Extraction, len(a.Results), len(a.Results)+extra),
		Selected: a.Selected,
	}
	copy(out.Files, a.Files)
	copy(out.Results, a.Results)
	return out
}
