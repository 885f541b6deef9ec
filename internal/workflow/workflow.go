// Package workflow orchestrates one screening session: pick a photo, run it
// through the predict proxy, and optionally save the outcome to the user's
// history.
package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"safeskin/internal/domain"
	"safeskin/internal/history"
	"safeskin/internal/httpx"
	"safeskin/internal/storage"
)

// User-facing messages, kept byte-for-byte stable: the CLI and tests assert
// on them.
const (
	msgSelectFirst      = "Please upload a skin photo first."
	msgAnalysisFailed   = "Analysis failed. Please try again."
	msgGenericFailure   = "Something went wrong. Please try again."
	msgLoginToSave      = "Please log in to save this result to your history."
	msgDetectBeforeSave = "Run a detection before saving to history."
	msgUploadFailed     = "Failed to upload image to history."
	msgInsertFailed     = "Failed to save result to history."
	msgSaved            = "Saved to your history."
)

// UserSource reports the current authenticated user, if any. auth.Session
// satisfies it.
type UserSource interface {
	User() *domain.User
}

// SelectedFile is the photo currently under consideration, plus its local
// preview copy.
type SelectedFile struct {
	Name        string
	ContentType string
	Data        []byte
	PreviewPath string
}

// Workflow is the screening state machine. A result exists exactly when the
// most recent detection for the currently selected file succeeded; selecting
// a new file or failing a detection clears it.
type Workflow struct {
	proxyURL string
	objects  *storage.Client
	bucket   string
	store    history.Store
	session  UserSource

	now func() time.Time

	mu        sync.Mutex
	selected  *SelectedFile
	result    *domain.PredictionResult
	errMsg    string
	saveMsg   string
	detecting bool
	saving    bool
	seq       uint64
}

func New(proxyURL string, objects *storage.Client, bucket string, store history.Store, session UserSource) *Workflow {
	return &Workflow{
		proxyURL: proxyURL,
		objects:  objects,
		bucket:   bucket,
		store:    store,
		session:  session,
		now:      time.Now,
	}
}

// SelectFile replaces the current selection: prior result, error and save
// confirmation are cleared, the preview copy is regenerated and the previous
// one released, and any in-flight detection is superseded.
func (w *Workflow) SelectFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}
	name := filepath.Base(path)

	preview, err := writePreview(name, data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected != nil && w.selected.PreviewPath != "" {
		os.Remove(w.selected.PreviewPath)
	}
	w.selected = &SelectedFile{
		Name:        name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Data:        data,
		PreviewPath: preview,
	}
	w.result = nil
	w.errMsg = ""
	w.saveMsg = ""
	w.seq++
	return nil
}

func writePreview(name string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "safeskin-preview-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write preview: %w", err)
	}
	return f.Name(), nil
}

// Detect sends the selected photo through the proxy and records the outcome.
// The returned error carries the same user-facing message that Error()
// reports. An outcome belonging to a superseded selection is discarded
// instead of overwriting newer state.
func (w *Workflow) Detect(ctx context.Context) error {
	w.mu.Lock()
	if w.selected == nil {
		w.errMsg = msgSelectFirst
		w.mu.Unlock()
		return errors.New(msgSelectFirst)
	}
	if w.detecting {
		w.mu.Unlock()
		return errors.New("detection already in progress")
	}
	w.detecting = true
	w.errMsg = ""
	w.saveMsg = ""
	seq := w.seq
	name := w.selected.Name
	data := w.selected.Data
	w.mu.Unlock()

	result, err := w.callPredict(ctx, name, data)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.detecting = false
	if seq != w.seq {
		// A newer selection superseded this request.
		return nil
	}
	if err != nil {
		w.result = nil
		msg := err.Error()
		if msg == "" {
			msg = msgGenericFailure
		}
		w.errMsg = msg
		return errors.New(msg)
	}
	w.result = result
	return nil
}

func (w *Workflow) callPredict(ctx context.Context, name string, data []byte) (*domain.PredictionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.proxyURL+"/api/predict", body)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := httpx.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(msgAnalysisFailed)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	result, err := domain.ParsePrediction(raw)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveToHistory uploads the selected photo and appends one history record,
// strictly in that order. An upload failure aborts before any insert; an
// insert failure leaves the uploaded object behind for the reconciliation
// sweep.
func (w *Workflow) SaveToHistory(ctx context.Context) error {
	w.mu.Lock()
	user := w.session.User()
	if user == nil {
		w.errMsg = msgLoginToSave
		w.mu.Unlock()
		return errors.New(msgLoginToSave)
	}
	if w.selected == nil || w.result == nil {
		w.errMsg = msgDetectBeforeSave
		w.mu.Unlock()
		return errors.New(msgDetectBeforeSave)
	}
	if w.saving {
		w.mu.Unlock()
		return errors.New("save already in progress")
	}
	w.saving = true
	w.errMsg = ""
	w.saveMsg = ""
	selected := w.selected
	result := *w.result
	w.mu.Unlock()

	err := w.save(ctx, user, selected, result)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.saving = false
	if err != nil {
		w.errMsg = err.Error()
		return err
	}
	w.saveMsg = msgSaved
	return nil
}

func (w *Workflow) save(ctx context.Context, user *domain.User, selected *SelectedFile, result domain.PredictionResult) error {
	ext := strings.TrimPrefix(filepath.Ext(selected.Name), ".")
	if ext == "" {
		ext = "jpg"
	}
	key := fmt.Sprintf("%s/%d.%s", user.UID, w.now().UnixMilli(), ext)

	contentType := selected.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	err := w.objects.Upload(ctx, w.bucket, key, selected.Data, storage.UploadOptions{
		ContentType:  contentType,
		CacheControl: "3600",
		Upsert:       false,
	})
	if err != nil {
		log.Printf("history upload failed: %v", err)
		return errors.New(msgUploadFailed)
	}

	imageURL := w.objects.PublicURL(w.bucket, key)

	confidence := result.Confidence
	item := domain.HistoryItem{
		UserID:     user.UID,
		ImageURL:   imageURL,
		Label:      result.Label,
		Confidence: &confidence,
		CreatedAt:  w.now().UTC(),
	}
	if err := w.store.Insert(ctx, item); err != nil {
		log.Printf("history insert failed: %v", err)
		return errors.New(msgInsertFailed)
	}
	return nil
}

// Close releases the current preview copy.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected != nil && w.selected.PreviewPath != "" {
		os.Remove(w.selected.PreviewPath)
		w.selected.PreviewPath = ""
	}
}

// Result returns the prediction for the current selection, or nil.
func (w *Workflow) Result() *domain.PredictionResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Error returns the current user-facing error message, or "".
func (w *Workflow) Error() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errMsg
}

// SaveMessage returns the save confirmation, or "".
func (w *Workflow) SaveMessage() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveMsg
}

// PreviewPath returns the preview copy of the current selection, or "".
func (w *Workflow) PreviewPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected == nil {
		return ""
	}
	return w.selected.PreviewPath
}

// Detecting reports whether a detection is in flight.
func (w *Workflow) Detecting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.detecting
}

// Saving reports whether a save is in flight.
func (w *Workflow) Saving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saving
}
