package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"DuetFM/config"
	"DuetFM/core/catalog"
	"DuetFM/logger"
	"DuetFM/model"
	"DuetFM/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/minio/minio-go/v7"
)

// allowedAudioExtensions 允许上传的音频扩展名
var allowedAudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
}

// allowedAudioMimeTypes 允许上传的MIME类型（较宽松，浏览器上报并不可靠）
var allowedAudioMimeTypes = map[string]bool{
	"audio/mpeg":   true,
	"audio/mp3":    true,
	"audio/wav":    true,
	"audio/wave":   true,
	"audio/x-wav":  true,
	"audio/ogg":    true,
	"audio/oga":    true,
	"audio/m4a":    true,
	"audio/aac":    true,
	"audio/flac":   true,
	"audio/x-flac": true,
	"audio/webm":   true,
	"audio/mp4":    true,
	"audio/x-m4a":  true,
}

// APIHandler 曲库相关的HTTP处理器
type APIHandler struct {
	catalog *catalog.Catalog
	cfg     *config.Config
}

// NewAPIHandler 创建曲库处理器
func NewAPIHandler(cat *catalog.Catalog, cfg *config.Config) *APIHandler {
	return &APIHandler{catalog: cat, cfg: cfg}
}

// GetTracksHandler 返回完整曲库（内置+上传，注册顺序）
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.catalog.ListTracks())
}

// GetUploadedTracksHandler 只返回上传歌曲
func (h *APIHandler) GetUploadedTracksHandler(w http.ResponseWriter, r *http.Request) {
	uploaded := make([]model.Track, 0)
	for _, t := range h.catalog.ListTracks() {
		if t.IsUploaded {
			uploaded = append(uploaded, t)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(uploaded)
}

// UploadTrackResponse 上传响应
type UploadTrackResponse struct {
	Success bool        `json:"success"`
	Track   model.Track `json:"track"`
	Message string      `json:"message"`
}

// UploadTrackHandler 处理音频上传
// 超限和非音频文件在进入曲库之前就被拒绝，错误只反馈给上传者
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("File too large. Maximum size is %dMB.", h.cfg.MaxUploadBytes>>20))
		return
	}

	file, header, err := r.FormFile("song")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	mimeType := header.Header.Get("Content-Type")
	if !allowedAudioExtensions[ext] && !allowedAudioMimeTypes[mimeType] {
		logger.Warn("rejected upload",
			logger.String("filename", header.Filename),
			logger.String("mime", mimeType))
		writeJSONError(w, http.StatusBadRequest,
			"Invalid file type. Please upload an audio file (MP3, WAV, OGG, M4A, AAC, FLAC).")
		return
	}

	objectName := uuid.New().String() + ext
	url, err := h.storeAudio(r.Context(), objectName, file, header.Size, mimeType)
	if err != nil {
		logger.Error("failed to store uploaded audio",
			logger.String("filename", header.Filename),
			logger.ErrorField(err))
		writeJSONError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(header.Filename, ext)
	}
	username := r.FormValue("username")
	if username == "" {
		username = "Anonymous"
	}

	track := h.catalog.AddUploadedTrack(r.Context(), catalog.UploadMeta{
		Title:      title,
		Artist:     "Unknown Artist",
		URL:        url,
		UploadedBy: username,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&UploadTrackResponse{
		Success: true,
		Track:   track,
		Message: "Song uploaded successfully!",
	})
}

// storeAudio 保存音频：配了MinIO走对象存储，否则落本地磁盘
func (h *APIHandler) storeAudio(ctx context.Context, objectName string, file io.Reader, size int64, contentType string) (string, error) {
	if h.cfg.MinioEnabled() {
		return storage.UploadAudio(ctx, "audio/"+objectName, file, size, contentType)
	}

	// 先写到监听目录之外的临时文件，写完整后再原子改名进目录，
	// 曲库监听器看到的永远是一个完整的文件
	tmp, err := os.CreateTemp(h.cfg.UploadDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	dst := filepath.Join(h.cfg.AudioUploadDir, objectName)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move file: %w", err)
	}
	return "/uploads/audio/" + objectName, nil
}

// DeleteTrackHandler 按ID删除上传歌曲
// 内置歌曲和未知ID返回404；正在播放这首歌的房间由事件分发器转入Idle
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["track_id"], 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid track id")
		return
	}

	removed, ok := h.catalog.RemoveTrack(r.Context(), id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Track not found")
		return
	}

	// 删除存储的文件是尽力而为，失败不影响曲库状态
	h.removeStoredAudio(r.Context(), removed)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"trackId": id,
	})
}

func (h *APIHandler) removeStoredAudio(ctx context.Context, track model.Track) {
	name := filepath.Base(track.URL)

	switch {
	case strings.HasPrefix(track.URL, "/media/"):
		if err := storage.RemoveObject(ctx, "audio/"+name); err != nil {
			logger.Warn("failed to remove audio object",
				logger.Int64("trackId", track.ID), logger.ErrorField(err))
		}
	case strings.HasPrefix(track.URL, "/uploads/"):
		if err := os.Remove(filepath.Join(h.cfg.AudioUploadDir, name)); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove audio file",
				logger.Int64("trackId", track.ID), logger.ErrorField(err))
		}
	}
}

// MediaProxyHandler 从MinIO回源上传的音频对象
func (h *APIHandler) MediaProxyHandler(w http.ResponseWriter, r *http.Request) {
	client := storage.GetMinioClient()
	if client == nil {
		http.Error(w, "object storage not available", http.StatusInternalServerError)
		return
	}

	objectPath := strings.TrimPrefix(r.URL.Path, "/media/")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, err := client.GetObject(ctx, storage.Bucket(), objectPath, minio.GetObjectOptions{})
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer object.Close()

	if _, err := object.Stat(); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("error serving audio object",
			logger.String("object", objectPath), logger.ErrorField(err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
