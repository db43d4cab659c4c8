package ingest

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/util"

	"github.com/gin-gonic/gin"
)

type IngestController struct {
	IngestService IngestServiceAPI
	Jobs          JobRunnerAPI
	StagingDir    string
}

type ingestInput struct {
	Model    string `json:"model"`
	FileName string `json:"file_name"`
	Urn      string `json:"urn" binding:"required"`
}

func userID(c *gin.Context) uint {
	v, ok := c.Get("userID")
	if !ok {
		return 0
	}
	switch id := v.(type) {
	case float64:
		return uint(id)
	case uint:
		return id
	}
	return 0
}

// spool copies an uploaded part to a staging file so it outlives the request.
func (ic *IngestController) spool(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(ic.StagingDir, "upload-*")
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func openSpooled(path string) (*os.File, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, func() { _ = os.Remove(path) }, apperror.Storage("staged upload vanished", err)
	}
	return f, func() {
		_ = f.Close()
		_ = os.Remove(path)
	}, nil
}

// POST /api/ingest
// multipart: file (required), database (optional), model, urn
// json: {"model","file_name","urn"}
func (ic *IngestController) StartIngest(c *gin.Context) {
	uid := userID(c)

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var in ingestInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req := IngestRequest{ModelName: in.Model, FileName: in.FileName, Urn: in.Urn, UserID: uid}
		ic.start(c, modelNameOf(req), KindIngest, uid, func(ctx context.Context) (*Result, error) {
			return ic.IngestService.Ingest(ctx, req)
		})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	req := IngestRequest{
		ModelName: c.PostForm("model"),
		FileName:  fh.Filename,
		Urn:       c.PostForm("urn"),
		UserID:    uid,
	}

	uploadPath, err := ic.spool(fh)
	if err != nil {
		apperror.Respond(c, apperror.Storage("failed to stage upload", err))
		return
	}
	var dbPath string
	if dbh, err := c.FormFile("database"); err == nil {
		if dbPath, err = ic.spool(dbh); err != nil {
			_ = os.Remove(uploadPath)
			apperror.Respond(c, apperror.Storage("failed to stage database", err))
			return
		}
	}

	started := ic.start(c, modelNameOf(req), KindIngest, uid, func(ctx context.Context) (*Result, error) {
		upload, closeUpload, err := openSpooled(uploadPath)
		defer closeUpload()
		if err != nil {
			return nil, err
		}
		db, closeDB, err := openSpooled(dbPath)
		defer closeDB()
		if err != nil {
			return nil, err
		}

		r := req
		r.Upload = upload
		if db != nil {
			r.Database = db
		}
		return ic.IngestService.Ingest(ctx, r)
	})
	if !started {
		_ = os.Remove(uploadPath)
		if dbPath != "" {
			_ = os.Remove(dbPath)
		}
	}
}

func modelNameOf(req IngestRequest) string {
	if name := strings.TrimSpace(req.ModelName); name != "" {
		return name
	}
	return util.ModelName(req.FileName)
}

// POST /api/ingest/:model/revert
func (ic *IngestController) Revert(c *gin.Context) {
	name := strings.TrimSpace(c.Param("model"))
	uid := userID(c)
	ic.start(c, name, KindRevert, uid, func(ctx context.Context) (*Result, error) {
		return ic.IngestService.Revert(ctx, name, uid)
	})
}

// POST /api/ingest/:model/reload
func (ic *IngestController) Reload(c *gin.Context) {
	name := strings.TrimSpace(c.Param("model"))
	ic.start(c, name, KindReload, userID(c), func(ctx context.Context) (*Result, error) {
		return ic.IngestService.Reload(ctx, name)
	})
}

func (ic *IngestController) start(c *gin.Context, model, kind string, uid uint, fn JobFunc) bool {
	job, err := ic.Jobs.Start(model, kind, uid, fn)
	if err != nil {
		apperror.Respond(c, err)
		return false
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "accepted", "data": job})
	return true
}

// GET /api/ingest/jobs/:id
func (ic *IngestController) GetJob(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	job, err := ic.Jobs.Get(uint(id))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": job})
}

// GET /api/models/:name/diff?from=1&to=2
func (ic *IngestController) Diff(c *gin.Context) {
	from, errFrom := strconv.Atoi(c.Query("from"))
	to, errTo := strconv.Atoi(c.Query("to"))
	if errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be version numbers"})
		return
	}

	name := strings.TrimSpace(c.Param("name"))
	changes, err := ic.IngestService.Diff(c.Request.Context(), name, from, to)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "model": name, "from": from, "to": to, "data": changes})
}
