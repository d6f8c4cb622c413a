package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/localstore-go/api/models"
	"github.com/moyoez/localstore-go/tool"
	"github.com/moyoez/localstore-go/types"
)

// MaxFormMemory is how much of a multipart form gin keeps in memory before spilling to disk.
const MaxFormMemory = 32 << 20

// UserStatus returns queue status for the web UI.
// GET /api/self/v1/status
func UserStatus(c *gin.Context) {
	resp := types.QueueStatusResponse{
		Running:         true,
		Pending:         []types.UploadItem{},
		NotifyWsEnabled: models.GetNotifyHub() != nil,
		Endpoint:        models.GetEndpoint(),
		DefaultFolderId: models.GetDefaultFolderId(),
	}
	if q := models.GetUploadQueue(); q != nil {
		resp.Active = q.Active()
		resp.Pending = q.Snapshot()
		resp.LastDrain = q.LastDrain()
	}
	c.JSON(http.StatusOK, resp)
}

// UserEnqueue queues local files given as file:/// URLs or plain paths.
// POST /api/self/v1/enqueue
// Request body: {"files":[{"fileUrl":"file:///home/me/a.pdf"}],"folderId":"3"}
func UserEnqueue(c *gin.Context) {
	q := models.GetUploadQueue()
	if q == nil {
		c.JSON(http.StatusServiceUnavailable, tool.FastReturnError("Upload queue not ready"))
		return
	}

	var request types.UserEnqueueRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body: "+err.Error()))
		return
	}
	if len(request.Files) == 0 {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("No files provided"))
		return
	}

	handles := make([]types.FileHandle, 0, len(request.Files))
	var problems []string
	for _, input := range request.Files {
		handle, err := tool.ProcessFileInput(input)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		handles = append(handles, handle)
	}
	if len(problems) > 0 {
		tool.DefaultLogger.Warnf("[Enqueue] Rejected %d of %d files", len(problems), len(request.Files))
		c.JSON(http.StatusBadRequest, tool.FastReturnErrorWithDetails("Some files could not be read", problems))
		return
	}

	folderId := request.FolderId
	if folderId == "" {
		folderId = models.GetDefaultFolderId()
	}
	items := q.Enqueue(handles, folderId)
	if items == nil {
		c.JSON(http.StatusServiceUnavailable, tool.FastReturnError("Upload queue is shutting down"))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(types.UserEnqueueResponse{Items: items}))
}

// UserUploadForm accepts files from the browser, stages them on disk and queues them.
// The staged copy is removed once the item settles.
// POST /api/self/v1/upload-form  (multipart: file (repeatable), folder_id)
func UserUploadForm(c *gin.Context) {
	q := models.GetUploadQueue()
	if q == nil {
		c.JSON(http.StatusServiceUnavailable, tool.FastReturnError("Upload queue not ready"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid multipart form: "+err.Error()))
		return
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("No files provided"))
		return
	}

	staged := make([]types.FileHandle, 0, len(headers))
	release := func() {
		for _, f := range staged {
			if r, ok := f.(types.Releaser); ok {
				_ = r.Release()
			}
		}
	}
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			release()
			c.JSON(http.StatusBadRequest, tool.FastReturnError(fmt.Sprintf("Failed to read %s: %v", fh.Filename, err)))
			return
		}
		file, err := tool.StageFile(c.Request.Context(), models.GetStagingFolder(), fh.Filename, src)
		src.Close()
		if err != nil {
			release()
			tool.DefaultLogger.Errorf("[UploadForm] Failed to stage %s: %v", fh.Filename, err)
			c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to stage file: "+err.Error()))
			return
		}
		staged = append(staged, file)
	}

	folderId := c.PostForm("folder_id")
	if folderId == "" {
		folderId = models.GetDefaultFolderId()
	}
	items := q.Enqueue(staged, folderId)
	if items == nil {
		release()
		c.JSON(http.StatusServiceUnavailable, tool.FastReturnError("Upload queue is shutting down"))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(types.UserEnqueueResponse{Items: items}))
}

// UserHistory lists recently settled uploads.
// GET /api/self/v1/history
func UserHistory(c *gin.Context) {
	h := models.GetHistory()
	if h == nil {
		c.JSON(http.StatusOK, tool.FastReturnSuccessWithData([]types.UploadItem{}))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(h.List()))
}
