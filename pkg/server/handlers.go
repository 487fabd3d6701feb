package server

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/duynguyendang/cyclopath/pkg/common/errors"
	"github.com/duynguyendang/cyclopath/pkg/export"
	"github.com/duynguyendang/cyclopath/pkg/extract"
)

// formOverheadBytes is allowed on top of the document for the other form fields.
const formOverheadBytes = 1 << 20

// generateRequest is the JSON form of a generation request.
type generateRequest struct {
	YoutubeURL string `json:"youtubeUrl" form:"youtubeUrl"`
	GithubURL  string `json:"githubUrl" form:"githubUrl"`
	BlogURL    string `json:"blogUrl" form:"blogUrl"`
}

// handleGeneratePath extracts the submitted sources and returns the generated path.
func (s *Server) handleGeneratePath(c *gin.Context) {
	req, err := s.bindGenerateRequest(c)
	if err != nil {
		handleError(c, err)
		return
	}

	nodes, err := s.paths.Generate(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}

	if c.Query("format") == "d3" {
		c.JSON(http.StatusOK, export.FromLearningPath(nodes))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"optimized_path": nodes,
	})
}

func (s *Server) bindGenerateRequest(c *gin.Context) (extract.Request, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxDocumentBytes+formOverheadBytes)

	var body generateRequest
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&body); err != nil {
			return extract.Request{}, bodyError(err)
		}
		return body.toRequest(nil), nil
	}

	if err := c.ShouldBind(&body); err != nil {
		return extract.Request{}, bodyError(err)
	}

	header, err := c.FormFile("pdfFile")
	if stderrors.Is(err, http.ErrMissingFile) || stderrors.Is(err, http.ErrNotMultipart) {
		return body.toRequest(nil), nil
	}
	if err != nil {
		return extract.Request{}, bodyError(err)
	}

	doc, err := s.readDocument(header)
	if err != nil {
		return extract.Request{}, err
	}
	return body.toRequest(doc), nil
}

func (s *Server) readDocument(header *multipart.FileHeader) (*extract.Document, error) {
	if header.Size > s.maxDocumentBytes {
		return nil, tooLarge(s.maxDocumentBytes)
	}
	f, err := header.Open()
	if err != nil {
		return nil, errors.NewAppError(http.StatusBadRequest, "Could not read uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxDocumentBytes+1))
	if err != nil {
		return nil, errors.NewAppError(http.StatusBadRequest, "Could not read uploaded file", err)
	}
	if int64(len(data)) > s.maxDocumentBytes {
		return nil, tooLarge(s.maxDocumentBytes)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &extract.Document{
		Data:     data,
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
	}, nil
}

func (b generateRequest) toRequest(doc *extract.Document) extract.Request {
	return extract.Request{
		VideoURL:   strings.TrimSpace(b.YoutubeURL),
		RepoURL:    strings.TrimSpace(b.GithubURL),
		ArticleURL: strings.TrimSpace(b.BlogURL),
		Document:   doc,
	}
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.NewAppError(http.StatusRequestEntityTooLarge, "Request body too large", err)
	}
	return errors.NewAppError(http.StatusBadRequest, "Invalid request body", err)
}

func tooLarge(limit int64) error {
	return errors.NewAppError(http.StatusRequestEntityTooLarge, fmt.Sprintf("Document exceeds the %d MiB limit", limit>>20), nil)
}

// handleError helper
func handleError(c *gin.Context, err error) {
	appErr := errors.MapError(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
