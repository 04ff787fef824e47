package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
	"github.com/kellywsq03/RAGify/internal/loader"
	"github.com/kellywsq03/RAGify/internal/storage"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// IndexRequest is the request body for POST /index. An empty body indexes
// the configured Markdown document.
type IndexRequest struct {
	Bucket  string `json:"bucket"`
	Path    string `json:"path"`
	PDFPath string `json:"pdf_path"`
}

// Source converts the request into a loader source.
func (r IndexRequest) Source() (loader.Source, error) {
	remote := r.Bucket != "" || r.Path != ""
	if remote && (r.Bucket == "" || r.Path == "") {
		return loader.Source{}, echo.NewHTTPError(http.StatusBadRequest, "bucket and path must be given together")
	}
	if remote && r.PDFPath != "" {
		return loader.Source{}, echo.NewHTTPError(http.StatusBadRequest, "give either pdf_path or bucket and path, not both")
	}
	return loader.Source{PDFPath: r.PDFPath, Bucket: r.Bucket, ObjectPath: r.Path}, nil
}

// resolvePDFPath maps a client pdf_path onto root. Relative paths are taken
// from root; the result, after symlinks, must stay inside it.
func resolvePDFPath(root, p string) (string, error) {
	if root == "" {
		return "", echo.NewHTTPError(http.StatusForbidden, "pdf_path is disabled; upload the PDF and index it by bucket and path")
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving pdf root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	}

	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}

	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", echo.NewHTTPError(http.StatusBadRequest, "pdf_path must be inside the configured pdf root")
	}
	return p, nil
}

// IndexResponse is the response body for POST /index.
type IndexResponse struct {
	OK         bool   `json:"ok"`
	Source     string `json:"source"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Collection string `json:"collection,omitempty"`
}

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse is the response body for POST /query.
type QueryResponse struct {
	OK          bool     `json:"ok"`
	Response    string   `json:"response"`
	PageContent []string `json:"page_content"`
	Pages       []int    `json:"pages"`
	NoResults   bool     `json:"no_results,omitempty"`
}

// UploadResponse is the response body for POST /upload/pdf.
type UploadResponse struct {
	OK bool `json:"ok"`
	storage.UploadResult
}

// GetFilesRequest is the request body for POST /upload/getFiles.
type GetFilesRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid index request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	src, err := req.Source()
	if err != nil {
		return err
	}
	if src.PDFPath != "" {
		if src.PDFPath, err = resolvePDFPath(s.config.PDFRoot, src.PDFPath); err != nil {
			return err
		}
	}

	res, err := s.pipeline.Index(c.Request().Context(), src)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, IndexResponse{
		OK:         true,
		Source:     res.Source,
		Documents:  res.Documents,
		Chunks:     res.Chunks,
		Collection: res.Index.Collection,
	})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	answer, err := s.pipeline.Answer(c.Request().Context(), req.Question)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, QueryResponse{
		OK:          true,
		Response:    answer.Text,
		PageContent: answer.Chunks,
		Pages:       answer.Pages,
		NoResults:   answer.NoResults,
	})
}

func (s *Server) handleUploadPDF(c echo.Context) error {
	if s.files == nil {
		return errStorageNotConfigured
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "no file uploaded")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()

	res, err := s.files.UploadPDF(c.Request().Context(), c.FormValue("userId"), fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UploadResponse{OK: true, UploadResult: res})
}

func (s *Server) handleGetFiles(c echo.Context) error {
	if s.files == nil {
		return errStorageNotConfigured
	}

	var req GetFilesRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid getFiles request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	files, err := s.files.ListUserFiles(c.Request().Context(), req.UserID)
	if err != nil {
		return err
	}
	if files == nil {
		files = []storage.ObjectInfo{}
	}
	return c.JSON(http.StatusOK, files)
}

var errStorageNotConfigured = fmt.Errorf("%w: object storage needs SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY", config.ErrConfigurationMissing)
